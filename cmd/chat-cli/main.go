package main

import (
	"agentchat-backend/internal/agents"
	"agentchat-backend/internal/chat"
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/relay"
	"agentchat-backend/internal/sessionid"
	"agentchat-backend/internal/store"
	"agentchat-backend/internal/store/memory"
	"agentchat-backend/internal/store/sqlite"
	"agentchat-backend/pkg/logger"
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

const localEmail = "local@agentchat.cli"

var (
	dbPath     = flag.String("db", "", "SQLite file for history (default: in-memory, lost on exit)")
	agentsFile = flag.String("agents", "", "YAML agent catalog (default: built-in catalog)")
	agentID    = flag.String("agent", "", "Agent to start with (default: catalog default)")
	timeout    = flag.Duration("timeout", relay.DefaultTimeout, "Per-attempt webhook timeout")
	verbose    = flag.Bool("v", false, "Log relay diagnostics to stderr")
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nShutting down...")
		cancel()
		os.Exit(0)
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Nop()
	if *verbose {
		log = logger.NewLogger(logger.Config{Level: logger.DebugLevel, Format: "text", Output: os.Stderr})
	}

	catalog := agents.Default()
	if *agentsFile != "" {
		var err error
		if catalog, err = agents.LoadFile(*agentsFile); err != nil {
			return err
		}
	}

	var st store.Store = memory.New()
	if *dbPath != "" {
		s, err := sqlite.Open(*dbPath, log)
		if err != nil {
			return err
		}
		defer s.Close()
		st = s
	}

	user, err := localUser(ctx, st)
	if err != nil {
		return err
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("locating config dir: %w", err)
	}
	session := sessionid.NewProvider(sessionid.NewFileStorage(filepath.Join(configDir, "agentchat", "session.json")))

	o := chat.New(chat.Config{
		Catalog: catalog,
		Store:   st,
		Relay: relay.New(
			relay.WithHTTPClient(&http.Client{Timeout: *timeout}),
			relay.WithLogger(log),
		),
		Session: session,
		Logger:  log,
	})
	if err := o.SetUser(ctx, user); err != nil {
		fmt.Println(red("Could not load conversations: " + err.Error()))
	}
	if *agentID != "" {
		if _, ok := catalog.Resolve(*agentID); !ok {
			return fmt.Errorf("unknown agent %q", *agentID)
		}
		if err := o.SelectAgent(ctx, *agentID); err != nil {
			return err
		}
	}

	printWelcome(o, catalog)
	printMessages(o.Snapshot().Messages, 0)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			act, err := command(ctx, o, catalog, line)
			if err != nil {
				fmt.Println(red(err.Error()))
			}
			switch act {
			case actQuit:
				return nil
			case actRedraw:
				printMessages(o.Snapshot().Messages, 0)
			}
			continue
		}

		before := len(o.Snapshot().Messages)
		if !o.SendMessage(ctx, line) {
			fmt.Println(red("Message was not sent."))
			continue
		}
		printMessages(newReplies(o.Snapshot().Messages, before), 0)
	}
}

func localUser(ctx context.Context, st store.UserStore) (*models.User, error) {
	u, err := st.GetUserByEmail(ctx, localEmail)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	u = &models.User{ID: uuid.New(), Email: localEmail}
	if err := st.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("creating local user: %w", err)
	}
	return u, nil
}

func printWelcome(o *chat.Orchestrator, catalog *agents.Catalog) {
	a, _ := catalog.Resolve(o.Snapshot().AgentID)
	fmt.Println(boldGreen("Agent Chat"))
	fmt.Printf("Talking to: %s\n", boldCyan(a.Name))
	fmt.Println(faint("Commands: /agents /agent <id> /new /list /open <n> /title <text> /quit"))
	fmt.Println()
}

// printMessages prints msgs[from:].
func printMessages(msgs []chat.Message, from int) {
	for _, m := range msgs[min(from, len(msgs)):] {
		switch {
		case m.Role == models.RoleUser:
			fmt.Printf("%s %s\n", boldGreen("You:"), m.Content)
		case m.Error:
			fmt.Printf("%s %s\n", boldCyan("Assistant:"), red(m.Content))
		default:
			fmt.Printf("%s %s\n", boldCyan("Assistant:"), m.Content)
		}
	}
}

type action int

const (
	actNone action = iota
	actRedraw
	actQuit
)

// newReplies returns what a send added after index from. The user's own
// line is already on screen, so user messages are left out.
func newReplies(msgs []chat.Message, from int) []chat.Message {
	var added []chat.Message
	for _, m := range msgs[min(from, len(msgs)):] {
		if m.Role != models.RoleUser {
			added = append(added, m)
		}
	}
	return added
}

func command(ctx context.Context, o *chat.Orchestrator, catalog *agents.Catalog, line string) (action, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return actQuit, nil

	case "/agents":
		current := o.Snapshot().AgentID
		for _, cat := range catalog.Categories() {
			fmt.Println(boldCyan(cat.Name))
			for _, a := range cat.Agents {
				marker := " "
				if a.ID == current {
					marker = "*"
				}
				fmt.Printf(" %s %-10s %s\n", marker, a.ID, a.Name)
			}
		}

	case "/agent":
		if _, ok := catalog.Resolve(arg); !ok {
			return actNone, fmt.Errorf("unknown agent %q", arg)
		}
		return actRedraw, o.SelectAgent(ctx, arg)

	case "/new":
		_, err := o.NewConversation(ctx)
		return actRedraw, err

	case "/list":
		s := o.Snapshot()
		if len(s.Conversations) == 0 {
			fmt.Println(faint("No conversations yet."))
		}
		for i, conv := range s.Conversations {
			marker := " "
			if s.CurrentConversationID != nil && *s.CurrentConversationID == conv.ID {
				marker = "*"
			}
			title := models.DefaultConversationTitle
			if conv.Title != nil {
				title = *conv.Title
			}
			fmt.Printf(" %s %2d  %s  %s\n", marker, i+1, title, faint(conv.CreatedAt.Local().Format(time.DateTime)))
		}

	case "/open":
		s := o.Snapshot()
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(s.Conversations) {
			return actNone, fmt.Errorf("usage: /open <1-%d>", len(s.Conversations))
		}
		return actRedraw, o.SelectConversation(ctx, s.Conversations[n-1].ID)

	case "/title":
		s := o.Snapshot()
		if s.CurrentConversationID == nil {
			return actNone, errors.New("no conversation is open")
		}
		if arg == "" {
			return actNone, errors.New("usage: /title <text>")
		}
		_, err := o.RenameConversation(ctx, *s.CurrentConversationID, arg)
		return actNone, err

	default:
		return actNone, fmt.Errorf("unknown command %s", name)
	}
	return actNone, nil
}
