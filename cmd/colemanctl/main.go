// colemanctl is a small line-protocol client for a running coleman
// server, used for manual testing and poking at a live instance.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"coleman/server"
	"coleman/version"
)

var addr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "colemanctl",
		Short: "Client for a running coleman server",
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:7432", "server address")

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(dropCmd())
	rootCmd.AddCommand(insertCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(filterCmd())
	rootCmd.AddCommand(aggCmd())
	rootCmd.AddCommand(simpleCmd("tables", "List table names"))
	rootCmd.AddCommand(simpleCmd("stats", "Show engine statistics"))
	rootCmd.AddCommand(simpleCmd("memory", "Show per-table memory usage"))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createCmd() *cobra.Command {
	var columns string
	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Create a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			specs, err := parseColumns(columns)
			if err != nil {
				return err
			}
			return roundTrip(&server.Request{Op: "create_table", Table: args[0], Columns: specs})
		},
	}
	cmd.Flags().StringVarP(&columns, "columns", "c", "", `column list, e.g. "id:int64,name:string,score:float64"`)
	cmd.MarkFlagRequired("columns")
	return cmd
}

func dropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return roundTrip(&server.Request{Op: "drop_table", Table: args[0]})
		},
	}
}

func insertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <table> <value>...",
		Short: "Insert one row; values are typed literals like i:1 f:9.5 s:alice b:true",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			values := make([]server.ValueSpec, 0, len(args)-1)
			for _, tok := range args[1:] {
				v, err := parseTypedLiteral(tok)
				if err != nil {
					return err
				}
				values = append(values, v)
			}
			return roundTrip(&server.Request{Op: "add_record", Table: args[0], Values: values})
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <table>",
		Short: "Return all rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return roundTrip(&server.Request{Op: "scan", Table: args[0]})
		},
	}
}

func filterCmd() *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "filter <table>",
		Short: "Return rows matching every --where predicate",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			preds, err := parsePredicates(where)
			if err != nil {
				return err
			}
			return roundTrip(&server.Request{Op: "filter", Table: args[0], Predicates: preds})
		},
	}
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, `predicate, e.g. "age > i:25" (repeatable)`)
	return cmd
}

func aggCmd() *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "agg <table> <count|sum> <column>",
		Short: "Aggregate a column over the rows matching every --where predicate",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			preds, err := parsePredicates(where)
			if err != nil {
				return err
			}
			return roundTrip(&server.Request{
				Op:         "aggregate",
				Table:      args[0],
				Func:       args[1],
				Column:     args[2],
				Predicates: preds,
			})
		},
	}
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, `predicate, e.g. "category = i:1" (repeatable)`)
	return cmd
}

func simpleCmd(op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return roundTrip(&server.Request{Op: op})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.String())
		},
	}
}

// roundTrip sends one request and pretty-prints the response.
func roundTrip(req *server.Request) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var resp server.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	if !resp.OK {
		return fmt.Errorf("%s: %s", resp.Code, resp.Error)
	}
	return nil
}

// parseColumns parses "id:int64,name:string" into column specs.
func parseColumns(s string) ([]server.ColumnSpec, error) {
	parts := strings.Split(s, ",")
	specs := make([]server.ColumnSpec, 0, len(parts))
	for _, part := range parts {
		name, typ, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("bad column %q, want name:type", part)
		}
		specs = append(specs, server.ColumnSpec{Name: name, Type: typ})
	}
	return specs, nil
}

// parseTypedLiteral parses a prefixed value token: i:42, f:9.5,
// s:alice, b:true.
func parseTypedLiteral(tok string) (server.ValueSpec, error) {
	prefix, rest, ok := strings.Cut(tok, ":")
	if !ok {
		return server.ValueSpec{}, fmt.Errorf("bad value %q, want i:/f:/s:/b: prefix", tok)
	}
	switch prefix {
	case "i":
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return server.ValueSpec{}, fmt.Errorf("bad int %q: %w", rest, err)
		}
		return server.ValueSpec{Type: "int64", Int: n}, nil
	case "f":
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return server.ValueSpec{}, fmt.Errorf("bad float %q: %w", rest, err)
		}
		return server.ValueSpec{Type: "float64", Float: f}, nil
	case "s":
		return server.ValueSpec{Type: "string", Str: rest}, nil
	case "b":
		b, err := strconv.ParseBool(rest)
		if err != nil {
			return server.ValueSpec{}, fmt.Errorf("bad bool %q: %w", rest, err)
		}
		return server.ValueSpec{Type: "bool", Bool: b}, nil
	default:
		return server.ValueSpec{}, fmt.Errorf("unknown value prefix %q", prefix)
	}
}

// parsePredicates parses "column op typed-literal" triples.
func parsePredicates(where []string) ([]server.PredicateSpec, error) {
	preds := make([]server.PredicateSpec, 0, len(where))
	for _, w := range where {
		fields := strings.Fields(w)
		if len(fields) != 3 {
			return nil, fmt.Errorf("bad predicate %q, want \"column op value\"", w)
		}
		v, err := parseTypedLiteral(fields[2])
		if err != nil {
			return nil, err
		}
		preds = append(preds, server.PredicateSpec{Column: fields[0], Op: fields[1], Value: &v})
	}
	return preds, nil
}
