package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/dantte-lp/switchd/pkg/switchclient"
)

func newWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func newListCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue names",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := switchclient.New(addr)
			if err := c.Login(cmd.Context(), "switchctl-"+ulid.Make().String()); err != nil {
				return err
			}
			names, err := c.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list queues with this name prefix")
	return cmd
}

func newTailCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print trace events as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := switchclient.New(addr)
			w := newWriter()
			fmt.Fprintln(w, "cursor\ttime\tqueue\tkind\tinput\toutput")

			var from int64
			for {
				events, err := c.Trace(cmd.Context(), from, 10*time.Second)
				if err != nil {
					w.Flush()
					return err
				}
				for _, ev := range events {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
						ev.Cursor, ev.Time.Format(time.RFC3339Nano), ev.Queue, ev.Kind, ev.Input, ev.Output)
					from = ev.Cursor
				}
				w.Flush()
				if !follow {
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "keep polling for new events")
	return cmd
}

// newMscgenCmd renders the current trace ring as a Message Sequence Chart
// script: each TraceEvent becomes one arc between input/output session
// names via the queue, suitable for piping into the mscgen renderer.
func newMscgenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mscgen",
		Short: "Render the trace ring as an mscgen script",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := switchclient.New(addr)
			events, err := c.Trace(cmd.Context(), 0, 0)
			if err != nil {
				return err
			}

			actors := map[string]struct{}{}
			for _, ev := range events {
				if ev.Input != "" {
					actors[ev.Input] = struct{}{}
				}
				if ev.Output != "" {
					actors[ev.Output] = struct{}{}
				}
			}

			fmt.Println("msc {")
			names := make([]string, 0, len(actors))
			for a := range actors {
				names = append(names, a)
			}
			fmt.Printf("  %s;\n", strings.Join(names, ","))
			for _, ev := range events {
				from, to := ev.Input, ev.Output
				if from == "" {
					from = "?"
				}
				if to == "" {
					to = ev.Queue
				}
				fmt.Printf("  %s -> %s [label=\"%s %s\"];\n", from, to, ev.Kind, ev.Queue)
			}
			fmt.Println("}")
			return nil
		},
	}
}

func newAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack QUEUE ID",
		Short: "Acknowledge a message by queue and index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid message index %q: %w", args[1], err)
			}
			c := switchclient.New(addr)
			if err := c.Login(cmd.Context(), "switchctl-"+ulid.Make().String()); err != nil {
				return err
			}
			return c.Ack(cmd.Context(), switchclient.MessageID{Queue: args[0], Index: index})
		},
	}
}

func newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy QUEUE",
		Short: "Destroy a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := switchclient.New(addr)
			if err := c.Login(cmd.Context(), "switchctl-"+ulid.Make().String()); err != nil {
				return err
			}
			return c.Destroy(cmd.Context(), args[0])
		},
	}
}

func newDiagnosticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics",
		Short: "Print a broker diagnostics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := switchclient.New(addr)
			raw, err := c.Diagnostics(cmd.Context())
			if err != nil {
				return err
			}
			var pretty map[string]interface{}
			if err := json.Unmarshal(raw, &pretty); err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		},
	}
}

func newCallCmd() *cobra.Command {
	var (
		body    string
		file    string
		timeout float64
	)
	cmd := &cobra.Command{
		Use:   "call QUEUE",
		Short: "Send a request to QUEUE and wait for the correlated response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(body, file)
			if err != nil {
				return err
			}

			session := "switchctl-call-" + ulid.Make().String()
			replyQueue := session + "-reply"

			c := switchclient.New(addr)
			ctx := cmd.Context()
			if err := c.Login(ctx, session); err != nil {
				return err
			}
			if err := c.CreateTransient(ctx, replyQueue); err != nil {
				return err
			}

			id, err := c.Send(ctx, args[0], switchclient.Message{
				Payload: payload,
				Kind:    switchclient.KindRequest,
				ReplyTo: replyQueue,
			})
			if err != nil {
				return err
			}
			if id == nil {
				return fmt.Errorf("queue %q does not exist", args[0])
			}

			items, _, err := c.Transfer(ctx, "", time.Duration(timeout*float64(time.Second)), []string{replyQueue})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("timed out waiting for a response on %q", replyQueue)
			}
			_, err = os.Stdout.Write(items[0].Message.Payload)
			return err
		},
	}
	cmd.Flags().StringVar(&body, "body", "", "literal request body")
	cmd.Flags().StringVar(&file, "file", "", "read the request body from this file (- for stdin)")
	cmd.Flags().Float64Var(&timeout, "timeout", 10, "seconds to wait for a response")
	return cmd
}

func newServeCmd() *cobra.Command {
	var program string
	cmd := &cobra.Command{
		Use:   "serve QUEUE",
		Short: "Answer requests on QUEUE by piping their payload through --program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if program == "" {
				return fmt.Errorf("serve requires --program")
			}

			session := "switchctl-serve-" + ulid.Make().String()
			c := switchclient.New(addr)
			ctx := cmd.Context()
			if err := c.Login(ctx, session); err != nil {
				return err
			}
			if err := c.CreatePersistent(ctx, args[0]); err != nil {
				return err
			}

			var from string
			for {
				items, next, err := c.Transfer(ctx, from, 30*time.Second, []string{args[0]})
				if err != nil {
					return err
				}
				from = next
				for _, item := range items {
					if err := handleServeRequest(ctx, c, program, item); err != nil {
						fmt.Fprintln(os.Stderr, "switchctl serve:", err)
					}
					if err := c.Ack(ctx, item.ID); err != nil {
						fmt.Fprintln(os.Stderr, "switchctl serve: ack:", err)
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&program, "program", "", "program to run for each request, payload on stdin, response on stdout")
	return cmd
}

func handleServeRequest(ctx context.Context, c *switchclient.Client, program string, item switchclient.Item) error {
	if item.Message.Kind != switchclient.KindRequest || item.Message.ReplyTo == "" {
		return nil
	}

	cmd := exec.Command("sh", "-c", program)
	cmd.Stdin = bytesReader(item.Message.Payload)
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("run %q: %w", program, err)
	}

	_, err = c.Send(ctx, item.Message.ReplyTo, switchclient.Message{
		Payload:    out,
		Kind:       switchclient.KindResponse,
		Correlates: &item.ID,
	})
	return err
}

func bytesReader(b []byte) io.Reader { return strings.NewReader(string(b)) }

func readPayload(body, file string) ([]byte, error) {
	switch {
	case file == "-":
		return io.ReadAll(bufio.NewReader(os.Stdin))
	case file != "":
		return os.ReadFile(file)
	default:
		return []byte(body), nil
	}
}
