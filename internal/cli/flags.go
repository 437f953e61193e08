package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kroma-labs/runtimehttp/httpclient"
	"github.com/kroma-labs/runtimehttp/internal/config"
)

// flags holds the command line. Values left unset on the command line do
// not override the config file.
type flags struct {
	method        string
	headers       []string
	query         []string
	data          string
	form          string
	formNoCharset bool
	raw           bool
	configPath    string
	selectPath    string
	jsonOut       bool
	debug         bool
	curl          bool
	noColor       bool
	metricsAddr   string
	otlpEndpoint  string
	timeout       time.Duration
	repeat        int
	interval      time.Duration

	faultLatency     time.Duration
	faultJitter      time.Duration
	faultErrorRate   float64
	faultTimeoutRate float64
}

func (f *flags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.method, "method", "X", "GET", "HTTP method")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, `Request header "Name: value" (repeatable)`)
	fs.StringArrayVarP(&f.query, "query", "q", nil, `Query parameter "key=value" (repeatable)`)
	fs.StringVar(&f.data, "data", "", "Send a text/plain body")
	fs.StringVar(&f.form, "form", "", "Send an already-encoded form body")
	fs.BoolVar(&f.formNoCharset, "form-no-charset", false, "Omit the charset parameter from the form Content-Type")
	fs.BoolVar(&f.raw, "raw", false, "Print the body without charset decoding")
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&f.selectPath, "select", "", "Print only this gjson path of a JSON body")
	fs.BoolVar(&f.jsonOut, "json", false, "Print the whole result as JSON")
	fs.BoolVar(&f.debug, "debug", false, "Log each call to stderr")
	fs.BoolVar(&f.curl, "curl", false, "Include a cURL command in debug logs")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", `Serve Prometheus metrics on this address, e.g. ":2112"`)
	fs.StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "Export spans over OTLP/gRPC to this endpoint")
	fs.DurationVar(&f.timeout, "timeout", 0, "Call timeout (default from config, 30s)")
	fs.IntVar(&f.repeat, "repeat", 1, "Number of calls to make, 0 repeats until interrupted")
	fs.DurationVar(&f.interval, "interval", time.Second, "Pause between repeated calls")

	fs.DurationVar(&f.faultLatency, "fault-latency", 0, "Inject this much latency into every call")
	fs.DurationVar(&f.faultJitter, "fault-jitter", 0, "Add up to this much random latency")
	fs.Float64Var(&f.faultErrorRate, "fault-error-rate", 0, "Fail this fraction of calls with a connection error")
	fs.Float64Var(&f.faultTimeoutRate, "fault-timeout-rate", 0, "Stall this fraction of calls until they time out")

	cmd.MarkFlagsMutuallyExclusive("data", "form")
	cmd.MarkFlagsMutuallyExclusive("json", "select")
}

// apply layers the flags that were set on top of cfg.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("curl") {
		cfg.GenerateCurl = f.curl
	}
	if changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = f.metricsAddr
	}
	if changed("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = f.otlpEndpoint
	}
	if changed("timeout") {
		cfg.HTTP.Timeout = f.timeout
	}
	if changed("fault-latency") {
		cfg.Fault.Latency = f.faultLatency
	}
	if changed("fault-jitter") {
		cfg.Fault.Jitter = f.faultJitter
	}
	if changed("fault-error-rate") {
		cfg.Fault.ErrorRate = f.faultErrorRate
	}
	if changed("fault-timeout-rate") {
		cfg.Fault.TimeoutRate = f.faultTimeoutRate
	}
}

// call builds the Call for rawURL.
func (f *flags) call(cmd *cobra.Command, rawURL string) (httpclient.Call, error) {
	headers, err := parseHeaders(f.headers)
	if err != nil {
		return httpclient.Call{}, err
	}

	call := httpclient.Call{
		RawResponseWanted: f.raw,
		URL:               rawURL,
		Query:             parseQuery(f.query),
		Method:            f.method,
		Headers:           headers,
	}

	switch {
	case cmd.Flags().Changed("data"):
		call.Body = httpclient.StringContent(f.data)
	case cmd.Flags().Changed("form") && f.formNoCharset:
		call.Body = httpclient.FormCompatNoCharset(f.form)
	case cmd.Flags().Changed("form"):
		call.Body = httpclient.FormContent(f.form)
	}

	if call.Body != nil && !cmd.Flags().Changed("method") {
		call.Method = "POST"
	}
	return call, nil
}

// parseHeaders reads "Name: value" pairs. An empty value is kept, which
// suppresses a default header of the same name.
func parseHeaders(raw []string) (httpclient.Headers, error) {
	out := make(httpclient.Headers, 0, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		out = append(out, httpclient.Header{Name: name, Value: strings.TrimSpace(value)})
	}
	return out, nil
}

// parseQuery reads "key=value" pairs. Repeated keys collect their values in
// order; a pair without "=" is a bare key.
func parseQuery(raw []string) []httpclient.QueryParam {
	if len(raw) == 0 {
		return nil
	}

	out := make([]httpclient.QueryParam, 0, len(raw))
	index := make(map[string]int, len(raw))
	for _, pair := range raw {
		key, value, hasValue := strings.Cut(pair, "=")

		i, seen := index[key]
		if !seen {
			i = len(out)
			index[key] = i
			out = append(out, httpclient.QueryParam{Key: key})
		}
		if hasValue {
			out[i].Values = append(out[i].Values, value)
		}
	}
	return out
}
