package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/ai-evaluator/testtaker/internal/config"
	"github.com/ai-evaluator/testtaker/internal/database"
	"github.com/ai-evaluator/testtaker/internal/draft"
	"github.com/ai-evaluator/testtaker/internal/identity"
	"github.com/ai-evaluator/testtaker/internal/logger"
	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/report"
	"github.com/ai-evaluator/testtaker/internal/session"
	"github.com/ai-evaluator/testtaker/internal/testservice"
	"github.com/ai-evaluator/testtaker/internal/validator"
)

func main() {
	username := flag.String("username", "", "platform username (prompted when empty)")
	testID := flag.String("test", "", "test to take (chosen from the available tests when empty)")
	results := flag.Bool("results", false, "list completed tests with grades and exit")
	apiURL := flag.String("api", "", "Test Service base URL (overrides API_BASE_URL)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	if *apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(*apiURL, "/")
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	// stdout belongs to the test UI.
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := bufio.NewReader(os.Stdin)
	client := testservice.New(cfg.APIBaseURL,
		testservice.WithTimeout(cfg.HTTPTimeout),
		testservice.WithLogger(log),
	)

	// ─── Sign In ───────────────────────────────────────────────────────
	client, studentID, err := signIn(ctx, client, cfg, reader, *username)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	if *results {
		if err := showResults(ctx, client, studentID); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		return
	}

	// ─── Choose Test ───────────────────────────────────────────────────
	if *testID == "" {
		*testID, err = chooseTest(ctx, client, studentID, reader)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		if *testID == "" {
			return
		}
	}

	// ─── Take Test ─────────────────────────────────────────────────────
	attempt, test, err := takeTest(ctx, cfg, log, client, studentID, *testID, reader)
	switch {
	case errors.Is(err, errQuit):
		fmt.Println("\nLeft the test without submitting.")
		return
	case err != nil:
		fmt.Println("\nError:", err)
		os.Exit(1)
	}

	// ─── Results ───────────────────────────────────────────────────────
	// The start response carries no answer key; fetch the graded view.
	if full, err := client.GetTest(ctx, test.ID); err == nil {
		test = *full
	} else {
		log.Warn().Err(err).Msg("Fetch test for results failed")
	}
	fmt.Println()
	if err := report.WriteResult(os.Stdout, test, *attempt); err != nil {
		log.Error().Err(err).Msg("Write results failed")
	}
}

// signIn returns a client acting as the student. API_TOKEN skips the login
// prompt; the student id then comes from STUDENT_ID or the token itself.
func signIn(ctx context.Context, client *testservice.Client, cfg *config.Config, reader *bufio.Reader, username string) (*testservice.Client, string, error) {
	if cfg.APIToken != "" {
		studentID := cfg.StudentID
		if studentID == "" {
			id, err := identity.FromToken(cfg.APIToken, cfg.JWTSecret)
			if err != nil {
				return nil, "", fmt.Errorf("read API_TOKEN: %w", err)
			}
			if err := id.RequireStudent(); err != nil {
				return nil, "", err
			}
			studentID = id.UserID
		}
		return client.WithBearer(cfg.APIToken), studentID, nil
	}

	fmt.Println("=== Sign In ===")
	if username == "" {
		fmt.Print("Username: ")
		line, _ := reader.ReadString('\n')
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return nil, "", errors.New("username is required")
	}

	fmt.Print("Password: ")
	password, err := readPassword(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read password: %w", err)
	}

	resp, err := client.Login(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	if resp.User.Role != model.RoleStudent {
		return nil, "", identity.ErrNotStudent
	}

	fmt.Printf("Welcome, %s!\n", resp.User.DisplayName())
	return client.WithBearer(resp.Token), resp.User.ID, nil
}

// readPassword reads without echo on a terminal and falls back to a plain
// line when stdin is piped.
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // Newline after password input
		return string(b), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func showResults(ctx context.Context, client *testservice.Client, studentID string) error {
	attempts, err := client.StudentAttempts(ctx, studentID)
	if err != nil {
		return err
	}
	return report.WriteAttempts(os.Stdout, attempts)
}

func chooseTest(ctx context.Context, client *testservice.Client, studentID string, reader *bufio.Reader) (string, error) {
	tests, err := client.AvailableTests(ctx)
	if err != nil {
		return "", err
	}
	attempts, err := client.StudentAttempts(ctx, studentID)
	if err != nil {
		return "", err
	}

	available := report.AvailableTests(tests, attempts)
	if len(available) == 0 {
		fmt.Println("No tests available right now.")
		return "", nil
	}

	fmt.Println("\nAvailable tests:")
	for i, t := range available {
		limit := "untimed"
		if t.TimeLimit > 0 {
			limit = fmt.Sprintf("%d min", t.TimeLimit)
		}
		fmt.Printf("  %d) %s  (%d questions, %s)\n", i+1, t.Title, len(t.Questions), limit)
	}

	for {
		fmt.Print("Choose a test (enter to cancel): ")
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return "", nil
		}
		n, convErr := strconv.Atoi(line)
		if convErr == nil && n >= 1 && n <= len(available) {
			return available[n-1].ID, nil
		}
		if err != nil {
			return "", nil
		}
		fmt.Printf("Enter a number between 1 and %d.\n", len(available))
	}
}

func takeTest(ctx context.Context, cfg *config.Config, log zerolog.Logger, client *testservice.Client, studentID, testID string, reader *bufio.Reader) (*model.Attempt, model.Test, error) {
	events := make(chan session.Event, 8)
	opts := []session.Option{
		session.WithLogger(log),
		session.WithTickInterval(cfg.SessionTickInterval),
		session.WithListener(eventSink(events)),
	}

	var store *draft.Store
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Warn().Err(err).Msg("Answer drafts unavailable")
		} else {
			defer rdb.Close()
			store = draft.NewStore(rdb, cfg.DraftTTL, log)
		}
	}
	if store != nil {
		loadCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		d, err := store.Load(loadCtx, studentID, testID)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Draft load failed")
		} else if !d.Empty() {
			opts = append(opts, d.Resume())
		}
		opts = append(opts, session.WithListener(store.Listener(studentID, testID)))
	}

	ctrl, err := session.Start(ctx, client, testID, studentID, opts...)
	if err != nil {
		return nil, model.Test{}, err
	}
	defer ctrl.Close()

	if n := ctrl.Restored(); n > 0 {
		fmt.Printf("Restored %d saved answer(s).\n", n)
	}
	if store != nil && ctrl.State() == session.NotSubmitted {
		saveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := store.KeepDeadline(saveCtx, studentID, testID, ctrl.Deadline()); err != nil {
			log.Warn().Err(err).Msg("Draft deadline save failed")
		}
		cancel()
	}

	fmt.Println(helpText)

	r := &runner{
		ctrl:   ctrl,
		lines:  readLines(reader),
		events: events,
		out:    os.Stdout,
	}
	attempt, err := r.run(ctx)
	if err != nil {
		return nil, model.Test{}, err
	}
	return attempt, ctrl.Test(), nil
}

// readLines feeds stdin lines to the runner until EOF.
func readLines(reader *bufio.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				lines <- strings.TrimRight(line, "\r\n")
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
