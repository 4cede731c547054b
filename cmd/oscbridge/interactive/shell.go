// Package interactive provides the interactive command-line interface for
// oscbridge.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/service"
)

const discoverTimeout = 5 * time.Second

// Shell handles interactive mode for oscbridge.
type Shell struct {
	mgr *service.Manager
	rl  *readline.Instance

	watching bool
}

// New creates a new interactive shell.
func New(mgr *service.Manager) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "osc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{mgr: mgr, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline input. Use
// this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "status":
			s.cmdStatus()

		case "peers", "discover":
			s.cmdPeers(ctx)

		case "send":
			s.cmdSend(args)

		case "chat":
			s.cmdChat(args)

		case "typing":
			s.cmdTyping(args)

		case "watch":
			s.cmdWatch(ctx)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
OSC Bridge Commands:
  status                         - Show subsystem status
  peers                          - Discover local directory peers
  send <name> <bool|int|float> <value>
                                 - Send an avatar parameter
  chat <text...>                 - Send text to the peer's chat box
  typing <on|off>                - Toggle the typing indicator
  watch                          - Print inbound control messages (Ctrl-C to stop)
  quit                           - Exit`)
}

func (s *Shell) cmdStatus() {
	st := s.mgr.Status()
	out := s.rl.Stdout()
	fmt.Fprintf(out, "Session:   %s\n", st.SessionID)
	fmt.Fprintf(out, "Discovery: %s\n", formatStatus(st.Discovery))
	fmt.Fprintf(out, "Directory: %s\n", formatStatus(st.Directory))
	fmt.Fprintf(out, "Transport: %s\n", formatStatus(st.Transport))
	fmt.Fprintf(out, "Watcher:   %s\n", formatStatus(st.Watcher))
	peer := st.Peer
	fmt.Fprintf(out, "Peer:      %s:%d (receive %d, discovered=%t)\n",
		peer.Host, peer.SendPort, peer.ReceivePort, peer.Discovered)
}

func formatStatus(st service.SubsystemStatus) string {
	state := "stopped"
	if st.Running {
		state = "running"
	}
	if st.Detail == "" {
		return state
	}
	return fmt.Sprintf("%s (%s)", state, st.Detail)
}

func (s *Shell) cmdPeers(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	peers, err := s.mgr.DiscoverLocalPeers(queryCtx)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Discovery failed: %v\n", err)
		return
	}
	if len(peers) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No peers found")
		return
	}
	for _, p := range peers {
		fmt.Fprintf(s.rl.Stdout(), "  %s at %s:%d\n", p.ServiceName, p.Address, p.Port)
	}
}

func (s *Shell) cmdSend(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: send <name> <bool|int|float> <value>")
		return
	}
	name, kind, raw := args[0], strings.ToLower(args[1]), args[2]

	var err error
	switch kind {
	case "bool":
		var v bool
		if v, err = strconv.ParseBool(raw); err == nil {
			err = s.mgr.SendAvatarParameterBool(name, v)
		}
	case "int":
		var v int64
		if v, err = strconv.ParseInt(raw, 10, 32); err == nil {
			err = s.mgr.SendAvatarParameterInt(name, int32(v))
		}
	case "float":
		var v float64
		if v, err = strconv.ParseFloat(raw, 32); err == nil {
			err = s.mgr.SendAvatarParameterFloat(name, float32(v))
		}
	default:
		fmt.Fprintf(s.rl.Stdout(), "Unknown parameter type: %s\n", kind)
		return
	}

	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Sent /avatar/parameters/%s\n", name)
}

func (s *Shell) cmdChat(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: chat <text...>")
		return
	}
	text := strings.Join(args, " ")
	if err := s.mgr.SendChatbox(text, true, false); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Sent")
}

func (s *Shell) cmdTyping(args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(s.rl.Stdout(), "Usage: typing <on|off>")
		return
	}
	if err := s.mgr.SetChatboxTyping(args[0] == "on"); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Send failed: %v\n", err)
	}
}

// cmdWatch prints inbound messages until the next interrupt. Only one
// watcher may own the stream.
func (s *Shell) cmdWatch(ctx context.Context) {
	if s.watching {
		fmt.Fprintln(s.rl.Stdout(), "Already watching")
		return
	}
	s.watching = true
	go func() {
		for {
			select {
			case msg, ok := <-s.mgr.TakeReceiveStream():
				if !ok {
					return
				}
				fmt.Fprintf(s.rl.Stdout(), "<- %s %v\n", msg.Address, msg.Args)
			case <-ctx.Done():
				return
			}
		}
	}()
	fmt.Fprintln(s.rl.Stdout(), "Watching inbound messages")
}
