package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/kroma-labs/runtimehttp/httpclient"
)

// printer renders results and failures.
type printer struct {
	stdout     io.Writer
	stderr     io.Writer
	jsonOut    bool
	selectPath string
	raw        bool

	green  *color.Color
	yellow *color.Color
	red    *color.Color
	bold   *color.Color
}

func newPrinter(stdout, stderr io.Writer, f *flags) *printer {
	p := &printer{
		stdout:     stdout,
		stderr:     stderr,
		jsonOut:    f.jsonOut,
		selectPath: f.selectPath,
		raw:        f.raw,
		green:      color.New(color.FgGreen, color.Bold),
		yellow:     color.New(color.FgYellow, color.Bold),
		red:        color.New(color.FgRed, color.Bold),
		bold:       color.New(color.Bold),
	}
	if f.noColor {
		for _, c := range []*color.Color{p.green, p.yellow, p.red, p.bold} {
			c.DisableColor()
		}
	}
	return p
}

// failureOutput is the --json form of a ClientError.
type failureOutput struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	URL        string `json:"url"`
}

func (p *printer) result(res *httpclient.Result) error {
	switch {
	case p.jsonOut:
		return p.writeJSON(res)
	case p.selectPath != "":
		return p.selected(res)
	}

	status := p.statusColor(res.StatusCode)
	for i, h := range res.Headers {
		if i == 0 && h.Value == "" {
			status.Fprintln(p.stdout, h.Name)
			continue
		}
		fmt.Fprintf(p.stdout, "%s: %s\n", p.bold.Sprint(h.Name), h.Value)
	}
	fmt.Fprintln(p.stdout)

	body := res.Body
	if p.raw {
		body = string(res.RawBody)
	}
	_, err := io.WriteString(p.stdout, body)
	if err == nil && body != "" && body[len(body)-1] != '\n' {
		_, err = fmt.Fprintln(p.stdout)
	}
	return err
}

// selected prints the value at the gjson path of a JSON body.
func (p *printer) selected(res *httpclient.Result) error {
	if !gjson.Valid(res.Body) {
		return errors.New("response body is not JSON, --select needs a JSON body")
	}
	value := gjson.Get(res.Body, p.selectPath)
	if !value.Exists() {
		return fmt.Errorf("path %q not found in response body", p.selectPath)
	}
	_, err := fmt.Fprintln(p.stdout, value.String())
	return err
}

func (p *printer) failure(err error) {
	var cerr *httpclient.ClientError
	if !errors.As(err, &cerr) {
		p.red.Fprintln(p.stderr, err.Error())
		return
	}

	if p.jsonOut {
		_ = p.writeJSON(failureOutput{
			Kind:       cerr.Kind.String(),
			Message:    cerr.Message,
			StatusCode: cerr.StatusCode,
			URL:        cerr.URL,
		})
		return
	}

	p.red.Fprintf(p.stderr, "%s (%s", cerr.Message, cerr.Kind)
	if cerr.StatusCode != 0 {
		p.red.Fprintf(p.stderr, ", status %d", cerr.StatusCode)
	}
	p.red.Fprintln(p.stderr, ")")
}

func (p *printer) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.stdout, string(data))
	return err
}

func (p *printer) statusColor(code int) *color.Color {
	switch {
	case code >= 400:
		return p.red
	case code >= 300:
		return p.yellow
	default:
		return p.green
	}
}
