package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ecoterra/siteapi/internal/security/password"
)

var client = &http.Client{Timeout: 15 * time.Second}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "hash-password":
		err = hashPassword(args)
	case "auth":
		err = handleAuth(args)
	case "team":
		err = handleList("team", args)
	case "projects":
		err = handleList("projects", args)
	case "images":
		err = handleImages(args)
	case "health":
		err = health()
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

// hashPassword prints a bcrypt hash suitable for ADMIN_PASSWORD_HASH
func hashPassword(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	plain := fs.String("password", "", "password to hash (reads stdin when empty)")
	_ = fs.Parse(args)

	secret := *plain
	if secret == "" {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 4096))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		secret = strings.TrimRight(string(data), "\r\n")
	}
	if len(secret) < password.MinLength {
		return fmt.Errorf("password must be at least %d characters", password.MinLength)
	}
	hash, err := password.Hash(secret)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func handleAuth(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: sitectl auth <login|logout|me|change-password>")
		return nil
	}

	switch args[0] {
	case "login":
		return login(args[1:])
	case "logout":
		return logout()
	case "me":
		return me()
	case "change-password":
		return changePassword(args[1:])
	default:
		return fmt.Errorf("unknown auth command: %s", args[0])
	}
}

func login(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "operator username or email")
	secret := fs.String("password", "", "password")
	_ = fs.Parse(args)

	if *username == "" || *secret == "" {
		fs.PrintDefaults()
		return errors.New("username and password are required")
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	payload := map[string]string{"username": *username, "password": *secret}
	if err := call(http.MethodPost, "/auth/login", payload, &result); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := saveToken(result.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Printf("✓ Logged in as %s (expires %s)\n", *username, result.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func logout() error {
	if err := os.Remove(tokenFile()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fmt.Println("✓ Logged out")
	return nil
}

func me() error {
	var result struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	if err := call(http.MethodGet, "/auth/me", nil, &result); err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE")
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", result.User.ID, result.User.Username, result.User.Email, result.User.Role)
	return w.Flush()
}

func changePassword(args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ExitOnError)
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	_ = fs.Parse(args)

	if *current == "" || *next == "" {
		fs.PrintDefaults()
		return errors.New("current and new passwords are required")
	}
	payload := map[string]string{"currentPassword": *current, "newPassword": *next}
	if err := call(http.MethodPut, "/auth/change-password", payload, nil); err != nil {
		return err
	}
	fmt.Println("✓ Password changed")
	return nil
}

// handleList prints team members or projects as a table
func handleList(resource string, args []string) error {
	if len(args) < 1 || args[0] != "list" {
		fmt.Printf("Usage: sitectl %s list\n", resource)
		return nil
	}

	var items []map[string]any
	if err := call(http.MethodGet, "/"+resource, nil, &items); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if resource == "team" {
		fmt.Fprintln(w, "ID\tNAME\tPOSITION\tEMAIL")
		for _, m := range items {
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", m["id"], m["name"], m["position"], m["email"])
		}
	} else {
		fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tLOCATION\tYEAR")
		for _, p := range items {
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", p["id"], p["title"], p["category"], p["location"], p["year"])
		}
	}
	return w.Flush()
}

func handleImages(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: sitectl images <list|get KEY>")
		return nil
	}

	switch args[0] {
	case "list":
		var result struct {
			Images map[string]string `json:"images"`
		}
		if err := call(http.MethodGet, "/images", nil, &result); err != nil {
			return err
		}
		keys := make([]string, 0, len(result.Images))
		for k := range result.Images {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tURL")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\n", k, result.Images[k])
		}
		return w.Flush()
	case "get":
		if len(args) < 2 {
			return errors.New("usage: sitectl images get KEY")
		}
		var result struct {
			URL string `json:"url"`
		}
		if err := call(http.MethodGet, "/images/url/"+args[1], nil, &result); err != nil {
			return err
		}
		fmt.Println(result.URL)
		return nil
	default:
		return fmt.Errorf("unknown images command: %s", args[0])
	}
}

func health() error {
	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := call(http.MethodGet, "/health", nil, &result); err != nil {
		return err
	}
	fmt.Printf("✓ %s: %s\n", result.Status, result.Message)
	return nil
}

// call sends a JSON request to the API, attaching the saved token when present
func call(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, getAPIURL()+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	addAuthHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getAPIURL() string {
	if url := os.Getenv("SITEAPI_API"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".siteapi", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}

func addAuthHeader(req *http.Request) {
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`Site API CLI

Usage:
  sitectl <command> [options]

Commands:
  hash-password  Print a bcrypt hash for ADMIN_PASSWORD_HASH
  auth           Operator session (login, logout, me, change-password)
  team           Team members (list)
  projects       Projects (list)
  images         Image map (list, get KEY)
  health         Check the API is running
  help           Show this help message

Environment Variables:
  SITEAPI_API    API endpoint (default: http://localhost:8080/api)

Examples:
  sitectl hash-password -password 'correct horse battery'
  sitectl auth login -username admin -password 'correct horse battery'
  sitectl team list
  sitectl images get hero
`)
}
