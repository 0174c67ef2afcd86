package main

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/grpc/client"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	AdminAddr     string        `envconfig:"RELAYCTL_ADDR" default:"127.0.0.1:8889"`
	Token         string        `envconfig:"ADMIN_TOKEN"`
	Secret        string        `envconfig:"ADMIN_SECRET"`
	TokenDuration time.Duration `envconfig:"ADMIN_TOKEN_DURATION" default:"24h"`
	Timeout       time.Duration `envconfig:"RELAYCTL_TIMEOUT" default:"10s"`
	// RELAYCTL_DEBUG_JSON dumps every request and response as JSON
	DebugJSON bool `envconfig:"RELAYCTL_DEBUG_JSON" default:"false"`
	Colours   bool `envconfig:"RELAYCTL_COLOURS" default:"true"`
}

var errUsage = errors.New("usage: relayctl status|users|kick <name>|announce <text>|start [port]|stop|journal [limit]|token [operator]")

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	flag.StringVar(&config.AdminAddr, "addr", config.AdminAddr, "address of the relay admin service")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		return exitConfig, errUsage
	}

	// token is signed locally and never reaches the server
	if args[0] == "token" {
		operator := "operator"
		if len(args) > 1 {
			operator = args[1]
		}
		token, err := auth.GenerateToken([]byte(config.Secret), operator, config.TokenDuration)
		if err != nil {
			return exitConfig, err
		}
		fmt.Println(token)
		return exitOK, nil
	}

	conn, err := grpc.NewClient(config.AdminAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(debugInterceptor(config.DebugJSON)),
	)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.AdminAddr, err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	c := client.NewAdminClient(conn, config.Token)
	if err := execute(ctx, c, config, args); err != nil {
		if errors.Is(err, errUsage) {
			return exitConfig, err
		}
		if st, ok := status.FromError(err); ok {
			return exitRuntime, fmt.Errorf("%s: %s", st.Code(), st.Message())
		}
		return exitRuntime, err
	}
	return exitOK, nil
}

func execute(ctx context.Context, c *client.AdminClient, config Config, args []string) error {
	switch args[0] {
	case "status":
		report, err := c.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(report, config.Colours)
	case "users":
		users, err := c.ListUsers(ctx)
		if err != nil {
			return err
		}
		table := newTable([]string{"#", "Name"})
		for i, name := range users {
			table.Append([]string{strconv.Itoa(i + 1), name})
		}
		table.Render()
	case "kick":
		if len(args) < 2 {
			return errUsage
		}
		kicked, err := c.Kick(ctx, args[1])
		if err != nil {
			return err
		}
		if !kicked {
			fmt.Printf("%s is not connected\n", args[1])
			return nil
		}
		fmt.Printf("%s removed\n", args[1])
	case "announce":
		if len(args) < 2 {
			return errUsage
		}
		return c.Announce(ctx, strings.Join(args[1:], " "))
	case "start":
		var port uint64
		if len(args) > 1 {
			var err error
			if port, err = strconv.ParseUint(args[1], 10, 16); err != nil {
				return fmt.Errorf("invalid port %q: %w", args[1], err)
			}
		}
		return c.Start(ctx, uint32(port))
	case "stop":
		return c.Stop(ctx)
	case "journal":
		var limit int64
		if len(args) > 1 {
			var err error
			if limit, err = strconv.ParseInt(args[1], 10, 32); err != nil {
				return fmt.Errorf("invalid limit %q: %w", args[1], err)
			}
		}
		entries, err := c.Journal(ctx, int32(limit))
		if err != nil {
			return err
		}
		table := newTable([]string{"At", "Kind", "Content"})
		for _, e := range entries {
			table.Append([]string{e.At, e.Kind, e.Content})
		}
		table.Render()
	default:
		return errUsage
	}
	return nil
}

func printStatus(report map[string]any, colours bool) {
	state := "STOPPED"
	if running, _ := report["running"].(bool); running {
		state = "RUNNING"
	}
	if colours {
		if state == "RUNNING" {
			state = color.New(color.FgGreen, color.OpBold).Render(state)
		} else {
			state = color.New(color.FgRed, color.OpBold).Render(state)
		}
	}
	fmt.Printf("Relay %s %v\n", state, report["address"])

	table := newTable([]string{"Metric", "Value"})
	appendSection(table, "", report["stats"])
	appendSection(table, "process.", report["process"])
	if users, ok := report["users"].([]any); ok {
		table.Append([]string{"users", strconv.Itoa(len(users))})
	}
	table.Render()
}

func appendSection(table *tablewriter.Table, prefix string, section any) {
	values, ok := section.(map[string]any)
	if !ok {
		return
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		table.Append([]string{prefix + k, fmt.Sprint(values[k])})
	}
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func debugInterceptor(enabled bool) grpc.UnaryClientInterceptor {
	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		if !enabled {
			return err
		}
		fmt.Fprintf(os.Stderr, "GRPC %s [%s] in %v\n", method, status.Code(err), time.Since(start))
		fmt.Fprintln(os.Stderr, "REQUEST:")
		fmt.Fprintln(os.Stderr, marshaler.Format(req.(proto.Message)))
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
		} else {
			fmt.Fprintln(os.Stderr, "RESPONSE:")
			fmt.Fprintln(os.Stderr, marshaler.Format(reply.(proto.Message)))
		}
		return err
	}
}
