package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	targetHost = "http://localhost:8080" // e2e environment
	rps        = 5
	duration   = 3 * time.Minute
)

var webhookSecret = getenv("GITHUB_WEBHOOK_SECRET", "load-test-secret")

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type commentEvent struct {
	Action       string `json:"action"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Issue struct {
		Number      int       `json:"number"`
		PullRequest *struct{} `json:"pull_request,omitempty"`
	} `json:"issue"`
	Comment struct {
		Body string `json:"body"`
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
}

var repos = []string{
	"loadorg/api", "loadorg/web", "loadorg/worker", "loadorg/docs", "loadorg/infra",
}

func commentPayload(repo, actor, body string, prNumber int) []byte {
	var event commentEvent
	event.Action = "created"
	event.Installation.ID = 1
	event.Repository.FullName = repo
	event.Issue.Number = prNumber
	event.Issue.PullRequest = &struct{}{}
	event.Comment.Body = body
	event.Comment.User.Login = actor

	payload, _ := json.Marshal(event)
	return payload
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func webhookTarget(t *vegeta.Target, payload []byte) {
	t.Method = http.MethodPost
	t.URL = targetHost + "/webhook"
	t.Body = payload
	t.Header = map[string][]string{
		"Content-Type":        {"application/json"},
		"X-GitHub-Event":      {"issue_comment"},
		"X-Hub-Signature-256": {sign(payload)},
	}
}

// Targeter: mostly read-only status checks, a trickle of freeze/unfreeze
// churn so the state machine and reconciler stay busy.
func makeTargeter() vegeta.Targeter {
	return func(t *vegeta.Target) error {
		r := rand.Float64()
		repo := repos[rand.Intn(len(repos))]
		pr := 1 + rand.Intn(50)

		// 70% /status
		if r < 0.70 {
			webhookTarget(t, commentPayload(repo, "load-viewer", "/status", pr))
			return nil
		}

		// 15% /freeze with a short window
		if r < 0.85 {
			webhookTarget(t, commentPayload(repo, "load-maintainer", "/freeze --duration 5m --reason \"load test\"", pr))
			return nil
		}

		// 10% /unfreeze
		if r < 0.95 {
			webhookTarget(t, commentPayload(repo, "load-maintainer", "/unfreeze", pr))
			return nil
		}

		// 5% GET /health
		t.Method = http.MethodGet
		t.URL = targetHost + "/health"
		t.Body = nil
		t.Header = map[string][]string{"Accept": {"application/json"}}
		return nil
	}
}

func runAttack() {
	rate := vegeta.Rate{Freq: rps, Per: time.Second}
	attacker := vegeta.NewAttacker()
	targeter := makeTargeter()

	var metrics vegeta.Metrics
	log.Printf("Attacking %s at %d rps for %s\n", targetHost, rps, duration)
	for res := range attacker.Attack(targeter, rate, duration, "freeze-webhook") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Printf("Requests:   %d\n", metrics.Requests)
	fmt.Printf("Success:    %.2f%%\n", metrics.Success*100)
	fmt.Printf("Latency p50: %s\n", metrics.Latencies.P50)
	fmt.Printf("Latency p95: %s\n", metrics.Latencies.P95)
	fmt.Printf("Latency p99: %s\n", metrics.Latencies.P99)
	fmt.Printf("Status codes: %v\n", metrics.StatusCodes)
	if len(metrics.Errors) > 0 {
		fmt.Printf("Errors: %v\n", metrics.Errors)
	}
}

func main() {
	runAttack()
}
