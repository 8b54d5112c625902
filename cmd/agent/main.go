// Command agent is the offline exam client. It prefetches encrypted exam
// packages while connectivity is available, opens them locally once the
// license window starts, seals answer snapshots during the exam, and uploads
// the collected submission package when the student finishes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/license"
	"github.com/stemsi/examvault/internal/logger"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/offline"
	"github.com/stemsi/examvault/internal/seal"
	"github.com/stemsi/examvault/internal/store"
	"github.com/stemsi/examvault/internal/transport"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	pkgStore, err := store.NewFilePackageStore(cfg.ClientDataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open package store")
	}
	subLog, err := store.NewFileSubmissionLog(cfg.ClientDataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open submission log")
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "prefetch":
		err = runPrefetch(args, cfg, pkgStore)
	case "open":
		err = runOpen(args, cfg, pkgStore)
	case "seal":
		err = runSeal(args, cfg, subLog)
	case "upload":
		err = runUpload(args, cfg, pkgStore, subLog)
	case "clear":
		err = runClear(pkgStore)
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: agent <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  prefetch -server URL -token JWT -exam UUID   Download an exam package")
	fmt.Println("  open     -exam-code CODE                     Decrypt a prefetched package")
	fmt.Println("  seal     -session UUID -answers FILE         Seal an answer snapshot")
	fmt.Println("  upload   -server URL -token JWT -exam-code CODE -session UUID")
	fmt.Println("                                               Upload sealed submissions")
	fmt.Println("  clear                                        Remove all prefetched packages")
}

// runPrefetch downloads the encrypted package for one exam and stores it
// locally. The payload stays encrypted at rest; nothing here can read it.
func runPrefetch(args []string, cfg *config.Config, pkgStore store.PackageStore) error {
	fs := flag.NewFlagSet("prefetch", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "Server base URL")
	token := fs.String("token", "", "Student JWT")
	examID := fs.String("exam", "", "Exam UUID")
	fs.Parse(args)

	if *token == "" || *examID == "" {
		return fmt.Errorf("prefetch requires -token and -exam")
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet,
		fmt.Sprintf("%s/api/v1/exams/%s/package", *server, *examID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+*token)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download package: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Data *model.DownloadedExamPackage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data == nil {
		return fmt.Errorf("malformed package response")
	}

	if err := pkgStore.Save(envelope.Data.ExamCode, envelope.Data); err != nil {
		return err
	}

	fmt.Printf("Prefetched exam '%s' (%d bytes encrypted content)\n",
		envelope.Data.ExamCode, len(envelope.Data.EncryptedExamData))
	return nil
}

// runOpen verifies and decrypts a stored package and prints the exam as JSON.
func runOpen(args []string, cfg *config.Config, pkgStore store.PackageStore) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	examCode := fs.String("exam-code", "", "Exam code of a prefetched package")
	userID := fs.Int("user", 0, "Student ID the license must be bound to (0 skips the check)")
	fs.Parse(args)

	if *examCode == "" {
		return fmt.Errorf("open requires -exam-code")
	}

	pkg, err := pkgStore.Load(*examCode)
	if err != nil {
		return err
	}

	opener, err := buildOpener(cfg)
	if err != nil {
		return err
	}

	opened, err := opener.Open(pkg, time.Now(), *userID)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(opened, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runSeal encrypts one answer snapshot and appends it to the session's
// local submission log. Input is a JSON object keyed by question ID.
func runSeal(args []string, cfg *config.Config, subLog store.SubmissionLog) error {
	fs := flag.NewFlagSet("seal", flag.ExitOnError)
	sessionStr := fs.String("session", "", "Exam session UUID")
	answersPath := fs.String("answers", "", "Path to answers JSON file")
	fs.Parse(args)

	if *sessionStr == "" || *answersPath == "" {
		return fmt.Errorf("seal requires -session and -answers")
	}

	sessionID, err := uuid.Parse(*sessionStr)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	raw, err := os.ReadFile(*answersPath)
	if err != nil {
		return err
	}
	var set model.AnswerSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return fmt.Errorf("parse answers: %w", err)
	}

	serverPub, err := cryptoenv.LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return err
	}

	sealer := seal.NewSealer(serverPub, logger.Setup(cfg.LogLevel, cfg.LogFormat))
	sealed, err := sealer.Seal(sessionID, set, time.Now())
	if err != nil {
		return err
	}
	if err := subLog.Append(sessionID, sealed); err != nil {
		return err
	}

	fmt.Printf("Sealed snapshot %s (%d answers)\n", sealed.SubmissionID, len(set))
	return nil
}

// runUpload bundles every sealed snapshot of a session into a submission
// package and sends it to the server.
func runUpload(args []string, cfg *config.Config, pkgStore store.PackageStore, subLog store.SubmissionLog) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "Server base URL")
	token := fs.String("token", "", "Student JWT")
	examCode := fs.String("exam-code", "", "Exam code of the prefetched package")
	sessionStr := fs.String("session", "", "Exam session UUID")
	startedStr := fs.String("started", "", "Session start time (RFC3339, defaults to first snapshot)")
	fs.Parse(args)

	if *token == "" || *examCode == "" || *sessionStr == "" {
		return fmt.Errorf("upload requires -token, -exam-code and -session")
	}

	sessionID, err := uuid.Parse(*sessionStr)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	pkg, err := pkgStore.Load(*examCode)
	if err != nil {
		return err
	}

	// The license carries the exam and user bindings the server expects.
	lic, err := decryptLicense(cfg, pkg.SignedLicense)
	if err != nil {
		return err
	}

	subs, err := subLog.List(sessionID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return fmt.Errorf("no sealed submissions for session %s", sessionID)
	}

	startedAt := subs[0].SavedAt
	if *startedStr != "" {
		startedAt, err = time.Parse(time.RFC3339, *startedStr)
		if err != nil {
			return fmt.Errorf("invalid -started: %w", err)
		}
	}

	submissionPkg := &model.SubmissionPackage{
		SessionID:   sessionID,
		ExamID:      lic.ExamID,
		ExamCode:    pkg.ExamCode,
		UserID:      lic.UserID,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		Submissions: subs,
	}

	uploader := transport.NewUploader(*server, *token, logger.Setup(cfg.LogLevel, cfg.LogFormat))
	receipt, err := uploader.Upload(context.Background(), submissionPkg)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded %d submissions for session %s\n", receipt.SubmissionsProcessed, receipt.SessionID)
	fmt.Printf("Score: %.1f  Suspicious level: %d\n", receipt.Score, receipt.SuspiciousLevel)
	if len(receipt.DetectedAnomalies) > 0 {
		fmt.Printf("Anomalies: %v\n", receipt.DetectedAnomalies)
	}
	return nil
}

func runClear(pkgStore store.PackageStore) error {
	n, err := pkgStore.ClearAll()
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d prefetched packages\n", n)
	return nil
}

func buildOpener(cfg *config.Config) (*offline.Opener, error) {
	pub, err := cryptoenv.LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	codec, err := buildLicenseCodec(cfg)
	if err != nil {
		return nil, err
	}
	return offline.NewOpener(pub, codec, logger.Setup(cfg.LogLevel, cfg.LogFormat)), nil
}

func buildLicenseCodec(cfg *config.Config) (*license.Codec, error) {
	key, err := cfg.LicenseKey()
	if err != nil {
		return nil, err
	}
	return license.NewCodec(key)
}

func decryptLicense(cfg *config.Config, signed string) (*model.License, error) {
	codec, err := buildLicenseCodec(cfg)
	if err != nil {
		return nil, err
	}
	payload, _, err := license.Parse(signed)
	if err != nil {
		return nil, err
	}
	return codec.Decrypt(payload)
}
