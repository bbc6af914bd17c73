// Package output renders run headers, live progress and summaries on a
// console.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/wesleyorama2/crudbench/internal/config"
	"github.com/wesleyorama2/crudbench/internal/driver"
	"github.com/wesleyorama2/crudbench/internal/report"
	"github.com/wesleyorama2/crudbench/internal/stats"
)

// Box drawing and progress bar characters
const (
	boxHorizontal  = "━"
	progressFilled = "█"
	progressEmpty  = "░"

	clearLine = "\r\033[2K"
	lineWidth = 56
	barWidth  = 24
)

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer      io.Writer
	NoColor     bool
	Quiet       bool
	ForceColors bool
	ForceTTY    bool
}

// Console writes human-readable run output. It is safe for concurrent use.
type Console struct {
	writer io.Writer
	colors *ColorScheme
	isTTY   bool
	quiet   bool
	noColor bool

	mu          sync.Mutex
	progressing bool
}

// NewConsole creates a console writing to cfg.Writer (stdout by default).
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)

	noColor := cfg.NoColor || !(cfg.ForceColors || (isTTY && supportsColors()))
	colors := NoColorScheme()
	if !noColor {
		colors = DefaultColorScheme().EnableColors()
	}

	return &Console{
		writer:  cfg.Writer,
		colors:  colors,
		isTTY:   isTTY,
		quiet:   cfg.Quiet,
		noColor: noColor,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run banner.
func (c *Console) PrintHeader(cfg *config.RunConfig) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()

	line := c.colors.Dim.Sprint(strings.Repeat(boxHorizontal, lineWidth))
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s %s", c.colors.Method.Sprint(cfg.Method), c.colors.URL.Sprint(cfg.URL)))
	c.writeln(fmt.Sprintf("%s requests, concurrency %d, timeout %s",
		formatNumber(int64(cfg.TotalRequests)), cfg.Concurrency, formatDuration(cfg.Timeout)))
	if cfg.MonitorPID > 0 {
		c.writeln(fmt.Sprintf("Monitoring pid %d every %s", cfg.MonitorPID, formatDuration(cfg.MonitorInterval)))
	}
	c.writeln(line)
}

// PrintDiagnostics prints the details of the request that will be repeated.
func (c *Console) PrintDiagnostics(cfg *config.RunConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()

	tag := c.colors.Highlight.Sprint("[DIAGNOSTIC]")
	c.writeln(fmt.Sprintf("%s Method: %s", tag, cfg.Method))
	c.writeln(fmt.Sprintf("%s URL: %s", tag, cfg.URL))
	c.writeln(fmt.Sprintf("%s Payload: %s", tag, cfg.Payload.Describe()))
	if cfg.Payload.Len() > 0 {
		c.writeln(fmt.Sprintf("%s Data: %s", tag, string(cfg.Payload.Bytes())))
	}
	c.writeln(fmt.Sprintf("%s Content-Type: %s", tag, orDash(cfg.ContentType())))

	keys := make([]string, 0, len(cfg.Headers))
	for k := range cfg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.writeln(fmt.Sprintf("%s Header: %s: %s", tag, c.colors.Label.Sprint(k), cfg.Headers[k]))
	}
	c.writeln(fmt.Sprintf("%s Concurrency: %d, Requests: %d", tag, cfg.Concurrency, cfg.TotalRequests))
}

// PrintProgress prints a progress update. On a terminal the update replaces
// the previous one in place.
func (c *Console) PrintProgress(s driver.ProgressSnapshot) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	text := fmt.Sprintf("Completed %s/%s %s %5.1f req/s | p50 %s | p95 %s | failures %s",
		formatNumber(s.Completed),
		formatNumber(s.Total),
		renderProgressBar(s.Fraction(), barWidth),
		s.Rate(),
		formatDurationShort(s.P50),
		formatDurationShort(s.P95),
		c.failureCount(s.Failures),
	)

	if c.isTTY {
		c.write(clearLine + text)
		c.progressing = true
		return
	}
	c.writeln(text)
}

// PrintSummary prints the final summary of one run. Undefined statistics are
// shown as n/a.
func (c *Console) PrintSummary(s *report.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()

	line := c.colors.Dim.Sprint(strings.Repeat(boxHorizontal, lineWidth))
	status := SuccessIcon(c.noColor)
	if s.Failures > 0 || s.Interrupted {
		status = WarningIcon(c.noColor)
	}

	c.writeln("")
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s %s", c.colors.Title.Sprint(s.Name), status))
	c.writeln(line)

	c.row("Total requests", formatNumber(int64(s.Total)))
	c.row("Successes", c.colors.Success.Sprint(formatNumber(int64(s.Successes))))
	c.row("Failures", c.failureCount(int64(s.Failures)))
	c.row("Success rate", c.colors.rateColor(s.SuccessRate).Sprintf("%.1f%%", s.SuccessRate))

	c.writeln("")
	c.writeln(c.colors.Title.Sprint("Latency (successful calls):"))
	c.row("  Mean", formatMs(s.MeanMs))
	c.row("  Min", formatMs(s.MinMs))
	c.row("  p50", formatMs(s.P50Ms))
	c.row("  p90", formatMs(s.P90Ms))
	c.row("  p95", formatMs(s.P95Ms))
	c.row("  p99", formatMs(s.P99Ms))
	c.row("  Max", formatMs(s.MaxMs))
	c.row("  Std dev", formatMs(s.StdDevMs))

	c.writeln("")
	c.row("Total duration", fmt.Sprintf("%.2f s", s.DurationS))
	c.row("Throughput", fmt.Sprintf("%.2f req/s", s.ThroughputRPS))

	if len(s.StatusCodes) > 0 {
		codes := make([]int, 0, len(s.StatusCodes))
		for code := range s.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		parts := make([]string, len(codes))
		for i, code := range codes {
			parts[i] = fmt.Sprintf("%d×%d", code, s.StatusCodes[code])
		}
		c.row("Status codes", strings.Join(parts, " "))
	}

	if s.Samples > 0 {
		c.row("Resource samples", fmt.Sprintf("%d (peak CPU %.1f%%, peak RSS %s)",
			s.Samples, s.PeakCPUPercent, formatBytes(s.PeakRSSBytes)))
	}
	if s.Interrupted {
		c.writeln(c.colors.Warn.Sprintf("Run interrupted after %d of %d requests", s.Total, s.Requested))
	}
	c.writeln("")
}

// PrintComparison prints one row per run, sorted by mean latency. Runs with
// no successful calls sort last.
func (c *Console) PrintComparison(summaries []*report.RunSummary) {
	if len(summaries) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()

	sorted := SortByMean(summaries)

	c.writeln(c.colors.Title.Sprint("Comparison (sorted by mean latency):"))
	tw := tabwriter.NewWriter(c.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tTOTAL\tOK%\tMEAN\tP50\tP95\tP99\tRPS")
	for _, s := range sorted {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%s\t%s\t%s\t%s\t%.2f\n",
			s.Name, s.Total, s.SuccessRate,
			formatMs(s.MeanMs), formatMs(s.P50Ms), formatMs(s.P95Ms), formatMs(s.P99Ms),
			s.ThroughputRPS)
	}
	tw.Flush()
	c.writeln("")
}

// PrintArtifact reports a written output file.
func (c *Console) PrintArtifact(what, path string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()
	c.writeln(fmt.Sprintf("Wrote %s to %s", what, c.colors.Value.Sprint(path)))
}

// PrintWarning prints a warning line.
func (c *Console) PrintWarning(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()
	c.writeln(c.colors.Warn.Sprintf("Warning: "+format, args...))
}

// PrintError reports a non-fatal error.
func (c *Console) PrintError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()
	c.writeln(c.colors.Error.Sprintf("Error: %v", err))
}

// SortByMean returns a copy of summaries ordered by ascending mean latency,
// with undefined means last. Ties keep their input order.
func SortByMean(summaries []*report.RunSummary) []*report.RunSummary {
	sorted := make([]*report.RunSummary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].MeanMs, sorted[j].MeanMs
		switch {
		case stats.IsUndefined(a):
			return false
		case stats.IsUndefined(b):
			return true
		default:
			return a < b
		}
	})
	return sorted
}

func (c *Console) row(label, value string) {
	c.writeln(fmt.Sprintf("%-18s %s", label+":", value))
}

func (c *Console) failureCount(n int64) string {
	if n == 0 {
		return formatNumber(n)
	}
	return c.colors.Error.Sprint(formatNumber(n))
}

// endProgress terminates an in-place progress line. Callers hold c.mu.
func (c *Console) endProgress() {
	if c.progressing {
		c.write("\n")
		c.progressing = false
	}
}

func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// renderProgressBar renders a progress bar.
func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, empty) + "]"
}

// formatMs formats a latency in milliseconds, or n/a when undefined.
func formatMs(v float64) string {
	if stats.IsUndefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f ms", v)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// formatBytes formats a byte count with a binary unit.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
