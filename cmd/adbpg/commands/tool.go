package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/tools"
	"github.com/54b3r/adbpg-go/internal/tracing"
)

// NewToolCmd constructs the `adbpg tool` command group.
func NewToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "List and run the knowledge base tools",
	}
	cmd.AddCommand(newToolListCmd(), newToolRunCmd())
	return cmd
}

func newToolListCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			client, err := newClient(log, nil)
			if err != nil {
				return fmt.Errorf("tool list: %w", err)
			}
			registry, err := buildRegistry(client, ingestConfig(nil, nil), log)
			if err != nil {
				return fmt.Errorf("tool list: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, t := range registry.Tools() {
				fmt.Fprintf(out, "%-34s %s\n", t.Name(), t.Description())
				if !verbose {
					continue
				}
				printParams(out, t)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show each tool's parameters")
	return cmd
}

func newToolRunCmd() *cobra.Command {
	var argsJSON string
	var argsFile string

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a tool with JSON arguments",
		Long: `Run a tool with JSON arguments and print its result.

Examples:
  adbpg tool run list_knowledge_bases
  adbpg tool run query_content_text --args '{"knowledgebase":"docs","query":"refund policy"}'
  adbpg tool run upload_document_async --args-file upload.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush := tracing.Register(log)
			defer flush()

			input := argsJSON
			if argsFile != "" {
				b, err := readArgsFile(argsFile)
				if err != nil {
					return fmt.Errorf("tool run: %w", err)
				}
				input = string(b)
			}

			client, err := newClient(log, nil)
			if err != nil {
				return fmt.Errorf("tool run: %w", err)
			}
			ledger, closeLedger := openLedger(log)
			defer closeLedger()

			registry, err := buildRegistry(client, ingestConfig(ledger, nil), log)
			if err != nil {
				return fmt.Errorf("tool run: %w", err)
			}
			t, ok := registry.Get(args[0])
			if !ok {
				return fmt.Errorf("tool run: unknown tool %q (available: %s)", args[0], strings.Join(registry.Names(), ", "))
			}

			res, err := t.Run(ctx, input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res == nil || res.JSON == nil {
				text, _ := res.Render()
				fmt.Fprintln(out, text)
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(res.JSON)
		},
	}
	cmd.Flags().StringVarP(&argsJSON, "args", "a", "{}", "Tool arguments as a JSON object")
	cmd.Flags().StringVar(&argsFile, "args-file", "", `Read the arguments from a file ("-" for stdin)`)
	return cmd
}

// printParams writes one line per parameter of t, required ones first.
func printParams(out io.Writer, t tools.Tool) {
	p, ok := t.(interface {
		Params() map[string]*schema.ParameterInfo
	})
	if !ok {
		return
	}
	params := p.Params()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := params[names[i]].Required, params[names[j]].Required
		if ri != rj {
			return ri
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		info := params[name]
		req := ""
		if info.Required {
			req = " (required)"
		}
		fmt.Fprintf(out, "    %-24s %-8s %s%s\n", name, info.Type, info.Desc, req)
	}
}

// readArgsFile reads path, or stdin when path is "-".
func readArgsFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
