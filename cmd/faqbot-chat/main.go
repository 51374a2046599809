// Command faqbot-chat is a terminal client for the /ask endpoint, mainly
// for manual testing against a running server.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type askRequest struct {
	Query       string `json:"query"`
	ShowSources bool   `json:"show_sources"`
}

type askResponse struct {
	Respuesta string   `json:"respuesta"`
	Fuentes   []string `json:"fuentes"`
	Evidencia *bool    `json:"evidencia"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "faqbot server base URL")
	apiKey := flag.String("api-key", os.Getenv("FAQBOT_API_KEY"), "bearer token, if the server requires one")
	showSources := flag.Bool("sources", true, "print citations with each answer")
	flag.Parse()

	sessionID := strings.ReplaceAll(uuid.NewString(), "-", "")
	client := &http.Client{Timeout: 120 * time.Second}

	fmt.Printf("faqbot chat (session %s). Escribe tu pregunta, o 'salir' para terminar.\n", sessionID[:8])

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "salir" || query == "exit" {
			break
		}

		answer, sources, err := ask(client, *baseURL, *apiKey, sessionID, query, *showSources)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Println(answer)
		for _, src := range sources {
			fmt.Printf("  · %s\n", src)
		}
		fmt.Println()
	}
}

func ask(client *http.Client, baseURL, apiKey, sessionID, query string, showSources bool) (string, []string, error) {
	body, err := json.Marshal(askRequest{Query: query, ShowSources: showSources})
	if err != nil {
		return "", nil, err
	}

	req, err := http.NewRequest("POST", strings.TrimRight(baseURL, "/")+"/ask", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", sessionID)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Message != "" {
			return "", nil, fmt.Errorf("%s (%s)", errResp.Message, errResp.Code)
		}
		return "", nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out askResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", nil, err
	}
	return out.Respuesta, out.Fuentes, nil
}
