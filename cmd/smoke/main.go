// Command smoke performs an authenticated round trip against the exam API:
// log in, verify the token pair landed, log out. Useful after deploys to
// check backend reachability and the auth contract without opening a
// browser.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/fastexam/exam-portal/internal/backend"
	"github.com/fastexam/exam-portal/internal/config"
	"github.com/fastexam/exam-portal/internal/credstore"
	"github.com/fastexam/exam-portal/internal/logger"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Exam API Smoke Test ===")
	fmt.Printf("Backend: %s\n", cfg.BackendBaseURL)

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	fmt.Println()

	// ─── Run Smoke Round Trip ──────────────────────────────────────────
	store := credstore.NewMemory()
	api := backend.NewClient(cfg.BackendBaseURL, store, cfg.BackendTimeout, cfg.RefreshWindow, log)

	const sid = "smoke-test"
	tr, err := api.Login(ctx, sid, email, string(bytePassword))
	if err != nil {
		log.Fatal().Err(err).Msg("Login failed")
	}

	creds, err := store.Load(ctx, sid)
	if err != nil {
		log.Fatal().Err(err).Msg("Token pair not stored after login")
	}

	fmt.Printf("Login OK (token_type=%s, access_token=%d bytes, csrf_token=%d bytes)\n",
		tr.TokenType, len(creds.AccessToken), len(creds.CSRFToken))

	if err := api.Logout(ctx, sid); err != nil {
		log.Warn().Err(err).Msg("Logout call failed (local session cleared)")
	} else {
		fmt.Println("Logout OK")
	}
}
