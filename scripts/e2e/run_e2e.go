// Package main runs smoke scenarios against a running bridge.
//
// Scenarios cover:
//   - Greeting and health endpoints
//   - A webhook round trip returning a well-formed TwiML or WhatsApp body
//   - Session continuity across two messages from the same correspondent
//   - Media URLs in replies resolving through the static image route
//   - Retried deliveries returning the same body when MessageSid repeats
//
// Usage:
//
//	API_BASE_URL=http://localhost:5000 go run scripts/e2e/run_e2e.go [scenario-name]
//	API_BASE_URL=... E2E_UTTERANCE="show me sarees" go run scripts/e2e/run_e2e.go media
package main

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const testFrom = "whatsapp:+15005550002"

var (
	apiBase   string
	utterance string
	client    = &http.Client{Timeout: 30 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type webhookReply struct {
	status      int
	contentType string
	body        []byte
}

// parsedReply is the format-independent view of a webhook body.
type parsedReply struct {
	text  string
	media []string
}

func postWebhook(text, messageSid string) (webhookReply, error) {
	form := url.Values{"Body": {text}, "From": {testFrom}}
	if messageSid != "" {
		form.Set("MessageSid", messageSid)
	}
	resp, err := client.PostForm(apiBase+"/webhook", form)
	if err != nil {
		return webhookReply{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return webhookReply{}, err
	}
	return webhookReply{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: body}, nil
}

func parseReply(r webhookReply) (parsedReply, error) {
	if strings.Contains(r.contentType, "json") {
		var env struct {
			Messages []struct {
				Type  string `json:"type"`
				Text  *struct{ Body string } `json:"text"`
				Image *struct {
					Link    string `json:"link"`
					Caption string `json:"caption"`
				} `json:"image"`
				Interactive *struct {
					Body struct{ Text string } `json:"body"`
				} `json:"interactive"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(r.body, &env); err != nil {
			return parsedReply{}, err
		}
		var out parsedReply
		for _, m := range env.Messages {
			switch {
			case m.Text != nil:
				out.text += m.Text.Body
			case m.Image != nil:
				out.media = append(out.media, m.Image.Link)
				out.text += m.Image.Caption
			case m.Interactive != nil:
				out.text += m.Interactive.Body.Text
			}
		}
		return out, nil
	}

	var doc struct {
		Message struct {
			Body  string   `xml:"Body"`
			Media []string `xml:"Media"`
		} `xml:"Message"`
	}
	if err := xml.Unmarshal(r.body, &doc); err != nil {
		return parsedReply{}, err
	}
	return parsedReply{text: doc.Message.Body, media: doc.Message.Media}, nil
}

func get(path string) (int, string, error) {
	resp, err := client.Get(apiBase + path)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), nil
}

func scenarioEndpoints(t *T) {
	status, body, err := get("/")
	if err != nil {
		t.fatalf("GET /: %v", err)
		return
	}
	t.check("greeting returns 200", status == http.StatusOK)
	t.check("greeting text", body == "Hello, this is the WhatsApp bot server!")

	status, body, err = get("/health")
	if err != nil {
		t.fatalf("GET /health: %v", err)
		return
	}
	t.check("health returns 200", status == http.StatusOK)
	t.check("health reports ok", strings.Contains(body, `"ok"`))

	status, _, err = get("/static/images/e2e-definitely-missing.png")
	if err != nil {
		t.fatalf("GET missing image: %v", err)
		return
	}
	t.check("missing image is 404", status == http.StatusNotFound)
}

func scenarioRoundTrip(t *T) {
	r, err := postWebhook(utterance, "")
	if err != nil {
		t.fatalf("post webhook: %v", err)
		return
	}
	t.check("webhook returns 200", r.status == http.StatusOK)
	reply, err := parseReply(r)
	if err != nil {
		t.fatalf("parse reply: %v", err)
		return
	}
	fmt.Printf("    reply: %q media=%v\n", reply.text, reply.media)
	t.check("reply has text or media", reply.text != "" || len(reply.media) > 0)
	t.check("no apology fallback", !strings.HasPrefix(reply.text, "Sorry, something went wrong"))
}

func scenarioSessionContinuity(t *T) {
	for i, text := range []string{utterance, "thanks"} {
		r, err := postWebhook(text, "")
		if err != nil {
			t.fatalf("post webhook %d: %v", i+1, err)
			return
		}
		t.check(fmt.Sprintf("message %d returns 200", i+1), r.status == http.StatusOK)
	}
}

func scenarioMedia(t *T) {
	r, err := postWebhook(utterance, "")
	if err != nil {
		t.fatalf("post webhook: %v", err)
		return
	}
	reply, err := parseReply(r)
	if err != nil {
		t.fatalf("parse reply: %v", err)
		return
	}
	if len(reply.media) == 0 {
		fmt.Println("    (no media in reply; set E2E_UTTERANCE to a prompt that returns an image)")
		return
	}
	for _, link := range reply.media {
		t.check("media url uses static route", strings.Contains(link, "/static/images/") || strings.HasPrefix(link, "http"))
		resp, err := client.Get(link)
		if err != nil {
			t.fatalf("fetch %s: %v", link, err)
			continue
		}
		resp.Body.Close()
		t.check("media url resolves: "+link, resp.StatusCode == http.StatusOK)
	}
}

func scenarioReplay(t *T) {
	sid := fmt.Sprintf("SMe2e%d", time.Now().UnixNano())
	first, err := postWebhook(utterance, sid)
	if err != nil {
		t.fatalf("first delivery: %v", err)
		return
	}
	second, err := postWebhook(utterance, sid)
	if err != nil {
		t.fatalf("second delivery: %v", err)
		return
	}
	t.check("both deliveries return 200", first.status == http.StatusOK && second.status == http.StatusOK)
	t.check("retried delivery replays the same body (requires REDIS_ADDR)", string(first.body) == string(second.body))
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}
	utterance = os.Getenv("E2E_UTTERANCE")
	if utterance == "" {
		utterance = "hi"
	}

	scenarios := []scenario{
		{"endpoints", scenarioEndpoints},
		{"round-trip", scenarioRoundTrip},
		{"session-continuity", scenarioSessionContinuity},
		{"media", scenarioMedia},
		{"replay", scenarioReplay},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "PASS"
		if t.failed > 0 {
			status = "FAIL"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\nSOME SCENARIOS FAILED")
		os.Exit(1)
	}
	fmt.Println("\nALL SCENARIOS PASSED")
}
