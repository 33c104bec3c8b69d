package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aretw0/weft/internal/presentation/graph"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultDiagnosticsAddr = "127.0.0.1:9470"

var errNotFound = errors.New("not found")

func newDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [chain-id]",
		Short: "Ask a running node about a chain",
		Long: `Queries the diagnostics endpoint of a running node. Without an id it prints
the dispatcher counters. Chain ids look like int:00000000000000ff or
ext:00000000000000ff.

--mermaid prints the archived history of a finished chain as a flowchart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDescribe,
	}
	cmd.Flags().String("addr", "", "Diagnostics address of the node (default diagnostics.addr or "+defaultDiagnosticsAddr+")")
	cmd.Flags().Bool("mermaid", false, "Print the archived history as a mermaid flowchart")
	cmd.Flags().Duration("timeout", 5*time.Second, "Request timeout")
	return cmd
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Diagnostics.Addr
	}
	if addr == "" {
		addr = defaultDiagnosticsAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base := strings.TrimSuffix(addr, "/")

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		body, err := fetch(ctx, base+"/stats")
		if err != nil {
			return err
		}
		var stats dispatch.Stats
		if err := json.Unmarshal(body, &stats); err != nil {
			return fmt.Errorf("failed to decode stats: %w", err)
		}
		tui.PrintSummary(out, "dispatcher", []tui.Row{
			{Label: "live", Value: fmt.Sprintf("%d", stats.Live)},
			{Label: "tracked", Value: fmt.Sprintf("%d", stats.Tracked)},
			{Label: "idle", Value: fmt.Sprintf("%d", stats.Idle)},
			{Label: "capacity", Value: fmt.Sprintf("%d", stats.Capacity)},
			{Label: "shards", Value: fmt.Sprintf("%d", stats.Shards)},
		})
		return nil
	}

	id, err := domain.ParseChainID(args[0])
	if err != nil {
		return err
	}

	if mermaid, _ := cmd.Flags().GetBool("mermaid"); mermaid {
		body, err := fetch(ctx, base+"/archive/"+url.PathEscape(id.String()))
		if errors.Is(err, errNotFound) {
			return fmt.Errorf("no archived history for %s", id)
		}
		if err != nil {
			return err
		}
		var entries []domain.HistoryEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return fmt.Errorf("failed to decode history: %w", err)
		}
		fmt.Fprint(out, graph.GenerateMermaid(entries))
		return nil
	}

	body, err := fetch(ctx, base+"/chains/"+url.PathEscape(id.String()))
	if errors.Is(err, errNotFound) {
		fmt.Fprintln(out, dispatch.NoInformation)
		return nil
	}
	if err != nil {
		return err
	}

	render := tui.PlainRenderer
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width, _, _ := term.GetSize(int(f.Fd()))
		if r, err := tui.NewRenderer(width); err == nil {
			render = r
		}
	}
	text, err := render(describeMarkdown(id, string(body)))
	if err != nil {
		return err
	}
	fmt.Fprint(out, text)
	return nil
}

// describeMarkdown puts the step line first and the history lines, if any,
// in a code block.
func describeMarkdown(id domain.ChainID, text string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", id)

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	fmt.Fprintf(&sb, "**%s**\n", lines[0])
	if len(lines) > 1 {
		sb.WriteString("\n```\n")
		for _, l := range lines[1:] {
			sb.WriteString(strings.TrimSpace(l))
			sb.WriteByte('\n')
		}
		sb.WriteString("```\n")
	}
	return sb.String()
}

func fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach node: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: %s: %s", target, resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}
