// registryctl is a smoke-test client for a running registry auth server.
// It walks the full credential lifecycle: register, login, call a protected
// endpoint, rotate the tokens, and call the protected endpoint again with
// the fresh access token.
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

	"golang.org/x/term"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func main() {
	var baseURL, username string
	flag.StringVar(&baseURL, "a", "http://localhost:8002", "server base URL")
	flag.StringVar(&username, "u", "smoke_test_user", "username to register and log in with")
	flag.Parse()

	password, err := readPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read password: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Println("1. Registering...")
	status, body, err := postJSON(client, baseURL+"/register", map[string]string{
		"username": username, "password": password,
	}, "")
	if err != nil {
		fail(err)
	}
	switch status {
	case http.StatusCreated:
		fmt.Println("   registered")
	case http.StatusBadRequest:
		// already registered from a previous run is fine
		fmt.Println("   already registered, continuing")
	default:
		fail(fmt.Errorf("register: unexpected status %d: %s", status, body))
	}

	fmt.Println("2. Logging in...")
	status, body, err = postJSON(client, baseURL+"/token", map[string]string{
		"username": username, "password": password,
	}, "")
	if err != nil {
		fail(err)
	}
	if status != http.StatusOK {
		fail(fmt.Errorf("login: unexpected status %d: %s", status, body))
	}
	var tokens tokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		fail(err)
	}
	fmt.Printf("   access token:  %s...\n", head(tokens.AccessToken))
	fmt.Printf("   refresh token: %s...\n", head(tokens.RefreshToken))

	fmt.Println("3. Calling /users/me with the access token...")
	if err := checkMe(client, baseURL, tokens.AccessToken); err != nil {
		fail(err)
	}
	fmt.Println("   access token is valid")

	fmt.Println("4. Refreshing...")
	status, body, err = postJSON(client, baseURL+"/refresh", nil, tokens.RefreshToken)
	if err != nil {
		fail(err)
	}
	if status != http.StatusOK {
		fail(fmt.Errorf("refresh: unexpected status %d: %s", status, body))
	}
	var rotated tokenResponse
	if err := json.Unmarshal(body, &rotated); err != nil {
		fail(err)
	}
	fmt.Printf("   new access token:  %s...\n", head(rotated.AccessToken))
	fmt.Printf("   new refresh token: %s...\n", head(rotated.RefreshToken))

	fmt.Println("5. Calling /users/me with the new access token...")
	if err := checkMe(client, baseURL, rotated.AccessToken); err != nil {
		fail(err)
	}
	fmt.Println("   new access token is valid")

	fmt.Println("OK")
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Print("Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Println()
		return string(b), err
	}
	// piped input
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func postJSON(client *http.Client, url string, payload any, bearer string) (int, []byte, error) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

func checkMe(client *http.Client, baseURL string, accessToken string) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/users/me", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("/users/me: unexpected status %d: %s", resp.StatusCode, body)
	}
	return nil
}

func head(token string) string {
	if len(token) > 20 {
		return token[:20]
	}
	return token
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
