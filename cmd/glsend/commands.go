package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/backplane"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/messaging"
)

const defaultConfigPath = "configs/config.yaml"

// options are the flags shared by every command.
type options struct {
	configPath string
	serverID   string
	timeout    time.Duration
}

func newRoot() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "glsend",
		Short:         "Send messages to devices through the dispatch cluster",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", configPathFromEnv(), "node configuration file")
	root.PersistentFlags().StringVar(&opts.serverID, "server", "", "node holding the device (default node.server_id)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "reply timeout (default node.reply_timeout)")

	root.AddCommand(newSendCmd(opts))
	root.AddCommand(newReadCmd(opts))
	root.AddCommand(newStateCmd(opts))
	return root
}

// newSendCmd sends a JSON encoded device message read from a file or stdin.
func newSendCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a JSON device message and print the reply",
		Example: `  echo '{"message_type":"READ_PROPERTY","message_id":"m-1","device_id":"dev-1","properties":["temp"]}' | glsend send --server node-a
  glsend send --file msg.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			msg, err := parseDeviceMessage(data)
			if err != nil {
				return err
			}
			return sendMessage(cmd.Context(), opts, cmd.OutOrStdout(), msg)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "message file, - for stdin")
	return cmd
}

// newReadCmd is a shorthand for a READ_PROPERTY message.
func newReadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read DEVICE PROPERTY...",
		Short: "Read device properties",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendMessage(cmd.Context(), opts, cmd.OutOrStdout(), message.NewReadProperty(args[0], args[1:]...))
		},
	}
}

// newStateCmd queries device online states from one or more nodes.
func newStateCmd(opts *options) *cobra.Command {
	var servers string
	cmd := &cobra.Command{
		Use:   "state DEVICE...",
		Short: "Query device online state across nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), opts, func(ctx context.Context, client *messaging.Client, serverID string) error {
				nodes := splitList(servers)
				if len(nodes) == 0 {
					nodes = []string{serverID}
				}
				states, err := client.DeviceStates(ctx, args, nodes...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), states)
			})
		},
	}
	cmd.Flags().StringVar(&servers, "servers", "", "comma-separated nodes to ask (default --server)")
	return cmd
}

func sendMessage(ctx context.Context, opts *options, out io.Writer, msg message.DeviceMessage) error {
	return withClient(ctx, opts, func(ctx context.Context, client *messaging.Client, serverID string) error {
		reply, err := client.Send(ctx, serverID, msg)
		if err != nil {
			return err
		}
		data, err := message.Encode(reply)
		if err != nil {
			return fmt.Errorf("encoding reply: %w", err)
		}
		fmt.Fprintln(out, string(data))
		if !reply.Successful() {
			return fmt.Errorf("device replied %s: %s", reply.Code(), reply.Text())
		}
		return nil
	})
}

// withClient loads the configuration, joins the backplane and runs fn
// with a context bounded by the reply timeout.
func withClient(parent context.Context, opts *options, fn func(context.Context, *messaging.Client, string) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Logging.Output = "stderr"
	log := logging.New(cfg.Logging, version)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bp, err := backplane.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening backplane: %w", err)
	}
	defer bp.Close()

	clusters := cluster.NewManager(bp)
	clusters.SetLogger(log.Component("cluster"))
	defer clusters.Close()

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.GetReplyTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	serverID := opts.serverID
	if serverID == "" {
		serverID = cfg.Node.ServerID
	}

	client := messaging.NewClient(clusters, messaging.Topics{Prefix: cfg.Backplane.TopicPrefix})
	return fn(ctx, client, serverID)
}

func parseDeviceMessage(data []byte) (message.DeviceMessage, error) {
	decoded, err := message.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	msg, ok := decoded.(message.DeviceMessage)
	if !ok {
		return nil, errors.New("message is not addressed to a device")
	}
	if _, isReply := msg.(message.DeviceMessageReply); isReply {
		return nil, errors.New("replies cannot be sent")
	}
	return msg, nil
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func configPathFromEnv() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
