package pytest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

// junitSuite matches both <testsuites> and <testsuite>; suites may nest.
type junitSuite struct {
	Suites []junitSuite `xml:"testsuite"`
	Cases  []junitCase  `xml:"testcase"`
}

type junitCase struct {
	ClassName string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	File      string        `xml:"file,attr"`
	Time      string        `xml:"time,attr"`
	Failures  []junitDetail `xml:"failure"`
	Errors    []junitDetail `xml:"error"`
	Skipped   []junitDetail `xml:"skipped"`
	SystemOut string        `xml:"system-out"`
	SystemErr string        `xml:"system-err"`
}

type junitDetail struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

func (d junitDetail) output() string {
	if text := strings.TrimSpace(d.Text); text != "" {
		return text
	}
	return d.Message
}

// statusRank orders statuses so that duplicate entries keep the worst one.
var statusRank = map[core.TestStatus]int{
	core.TestStatusPassed:  0,
	core.TestStatusSkipped: 1,
	core.TestStatusFailed:  2,
	core.TestStatusErrored: 3,
}

// parseJUnit converts a JUnit XML report into results, in document order.
// A testcase reported more than once (pytest emits a second entry for a
// teardown error) is merged into a single result.
func parseJUnit(data []byte, resolver *nameResolver) ([]core.TestResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, core.ErrParse("empty test report")
	}

	var root junitSuite
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, core.ErrParse(fmt.Sprintf("decoding junit report: %v", err)).WithCause(err)
	}

	var results []core.TestResult
	seen := make(map[core.TestName]int)

	var walk func(s junitSuite)
	walk = func(s junitSuite) {
		for _, tc := range s.Cases {
			r := caseResult(tc, resolver)
			if i, ok := seen[r.Name]; ok {
				results[i] = merge(results[i], r)
				continue
			}
			seen[r.Name] = len(results)
			results = append(results, r)
		}
		for _, child := range s.Suites {
			walk(child)
		}
	}
	walk(root)

	return results, nil
}

func caseResult(tc junitCase, resolver *nameResolver) core.TestResult {
	r := core.TestResult{
		Name:   resolver.resolve(tc.ClassName, tc.Name, tc.File),
		Status: core.TestStatusPassed,
	}
	if secs, err := strconv.ParseFloat(tc.Time, 64); err == nil {
		r.Duration = time.Duration(math.Round(secs * float64(time.Second)))
	}

	var details []junitDetail
	switch {
	case len(tc.Errors) > 0:
		r.Status = core.TestStatusErrored
		details = tc.Errors
	case len(tc.Failures) > 0:
		r.Status = core.TestStatusFailed
		details = tc.Failures
	case len(tc.Skipped) > 0:
		r.Status = core.TestStatusSkipped
		details = tc.Skipped
	}

	var out []string
	for _, d := range details {
		if s := d.output(); s != "" {
			out = append(out, s)
		}
	}
	if r.Failing() {
		if s := strings.TrimSpace(tc.SystemOut); s != "" {
			out = append(out, "----- captured stdout -----\n"+s)
		}
		if s := strings.TrimSpace(tc.SystemErr); s != "" {
			out = append(out, "----- captured stderr -----\n"+s)
		}
	}
	r.Output = strings.Join(out, "\n")
	return r
}

func merge(a, b core.TestResult) core.TestResult {
	out := a
	if statusRank[b.Status] > statusRank[a.Status] {
		out.Status = b.Status
	}
	switch {
	case a.Output == "":
		out.Output = b.Output
	case b.Output != "":
		out.Output = a.Output + "\n" + b.Output
	}
	out.Duration = a.Duration + b.Duration
	return out
}
