// Command probe is a terminal client for exercising a running
// collaboration server: it logs in, joins a project, prints every event
// it receives, and dumps a per-event-type summary on exit.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"video2tool/client"
	"video2tool/domain"
	"video2tool/domain/event"
)

type Config struct {
	ServerURL string `envconfig:"PROBE_SERVER_URL" default:"http://localhost:8080"`
	Email     string `envconfig:"PROBE_EMAIL" required:"true"`
	Password  string `envconfig:"PROBE_PASSWORD" required:"true"`
	Project   string `envconfig:"PROBE_PROJECT" default:"demo"`
	LogLevel  string `envconfig:"PROBE_LOG_LEVEL" default:"info"`
	// PROBE_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"PROBE_COLOURS" default:"true"`
}

func main() {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if !cfg.Colours {
		color.Disable()
	}

	token, err := login(cfg)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := client.NewSession(logs.GetLoggerFromString(cfg.LogLevel), client.Config{
		URL: "ws" + strings.TrimPrefix(cfg.ServerURL, "http") + "/ws",
	})
	defer session.Disconnect()

	if err := session.Connect(ctx); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	if err := session.Authenticate(ctx, token); err != nil {
		log.Fatalf("Authenticate failed: %v", err)
	}
	if err := session.JoinProject(ctx, domain.ProjectID(cfg.Project)); err != nil {
		log.Fatalf("Join failed: %v", err)
	}
	fmt.Printf("Watching project %q as %s (Ctrl-C to stop)\n\n", cfg.Project, cfg.Email)

	counts := &eventCounter{seen: make(map[event.Type]int)}
	watch := func(typ event.Type, render func(event.Envelope) string) {
		session.On(typ, func(e event.Envelope) {
			counts.incr(typ)
			fmt.Println(render(e))
		})
	}

	watch(event.TypeUserJoined, func(e event.Envelope) string {
		return color.New(color.FgGreen).Render(line("JOIN", e, event.KeyIdentity))
	})
	watch(event.TypeUserLeft, func(e event.Envelope) string {
		return color.New(color.FgYellow).Render(line("LEFT", e, event.KeyIdentity))
	})
	watch(event.TypeTaskUpdated, func(e event.Envelope) string {
		return line("TASK", e, event.KeyIdentity, event.KeyTask)
	})
	watch(event.TypeTaskMoved, func(e event.Envelope) string {
		return line("MOVE", e, event.KeyIdentity, event.KeyTask)
	})
	watch(event.TypeUserActivity, func(e event.Envelope) string {
		return color.New(color.FgCyan).Render(line("BUSY", e, event.KeyIdentity, event.KeyActivity))
	})
	watch(event.TypeNotification, func(e event.Envelope) string {
		return color.New(color.FgMagenta).Render(line("NOTE", e, event.KeyLevel, event.KeyMessage))
	})

	<-ctx.Done()

	session.LeaveProject(domain.ProjectID(cfg.Project))
	counts.summarize(os.Stdout)
}

// login exchanges credentials for a token, registering the account on
// the first run.
func login(cfg Config) (string, error) {
	token, err := postAuth(cfg.ServerURL+"/auth/login", cfg.Email, cfg.Password)
	if err == nil {
		return token, nil
	}
	return postAuth(cfg.ServerURL+"/auth/register", cfg.Email, cfg.Password)
}

func postAuth(url, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, parsed["error"])
	}
	return parsed["token"], nil
}

func line(tag string, e event.Envelope, keys ...string) string {
	at, _ := e.Payload[event.KeyTimestamp].(string)
	parts := []string{fmt.Sprintf("[%s] %s", tag, at)}
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%v", e.Payload[key]))
	}
	return strings.Join(parts, "  ")
}

type eventCounter struct {
	mu   sync.Mutex
	seen map[event.Type]int
}

func (c *eventCounter) incr(typ event.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[typ]++
}

func (c *eventCounter) summarize(out *os.File) {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]string, 0, len(c.seen))
	for typ := range c.seen {
		types = append(types, string(typ))
	}
	sort.Strings(types)

	fmt.Fprintf(out, "\nSession summary at %s\n", time.Now().Format(time.RFC822))
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Event", "Count"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, typ := range types {
		table.Append([]string{typ, fmt.Sprintf("%d", c.seen[event.Type(typ)])})
	}
	table.Render()
}
