package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type extractResp struct {
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	FilesUploaded int      `json:"files_uploaded"`
	S3URIs        []string `json:"s3_uris"`
	FailedFiles   []struct {
		File  string `json:"file"`
		Error string `json:"error"`
	} `json:"failed_files"`
}

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

type profile struct {
	BaseURL string `yaml:"baseUrl"`
	Token   string `yaml:"token"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

func newClient(baseURL, token string, timeout time.Duration) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) request(method, path string, body any) (int, []byte, error) {
	var buf *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.baseURL+path, buf)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

func main() {
	baseURL := getenv("DOCHARVEST_BASE_URL", "http://localhost:8080")
	token := getenv("DOCHARVEST_TOKEN", "")
	profileName := getenv("DOCHARVEST_PROFILE", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "docharvest",
		Short: "docharvest CLI",
		Long:  "docharvest CLI for running document extractions against a docharvest server.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL for docharvest")
	root.PersistentFlags().StringVar(&token, "token", token, "Bearer token")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		active := resolveProfileName(profileName, cfg)
		prof := cfg.Profiles[active]

		flags := cmd.Flags()
		if !flags.Changed("base-url") {
			if v := strings.TrimSpace(os.Getenv("DOCHARVEST_BASE_URL")); v != "" {
				baseURL = v
			} else if prof.BaseURL != "" {
				baseURL = prof.BaseURL
			}
		}
		if !flags.Changed("token") {
			if v := strings.TrimSpace(os.Getenv("DOCHARVEST_TOKEN")); v != "" {
				token = v
			} else if prof.Token != "" {
				token = prof.Token
			}
		}
		if !flags.Changed("profile") && profileName == "" && active != "" {
			profileName = active
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(authCmd(&profileName, ui))
	root.AddCommand(extractCmd(&baseURL, &token, ui))
	root.AddCommand(batchCmd(&baseURL, &token, ui))
	root.AddCommand(healthCmd(&baseURL, &token, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		baseURL  string
		token    string
		noPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]

			if baseURL == "" {
				baseURL = prof.BaseURL
			}
			if baseURL == "" {
				baseURL = "http://localhost:8080"
			}

			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Base URL", baseURL)
				if token == "" {
					token = prompt(reader, "Token (optional)", "")
				}
			}

			prof.BaseURL = strings.TrimSpace(baseURL)
			if token != "" {
				prof.Token = strings.TrimSpace(token)
			}

			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}

			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized profile '%s' at %s\n", ui.ok("[OK]"), active, cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for docharvest")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func authCmd(profileName *string, ui *ui) *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored credentials",
	}

	var token string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store token in config",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := strings.TrimSpace(token)
			if t == "" {
				v, err := promptSecret("Token")
				if err != nil {
					return err
				}
				t = v
			}
			if t == "" {
				return errors.New("token is required")
			}
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]
			prof.Token = t
			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}
			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Credentials updated for '%s'\n", ui.ok("[OK]"), active)
			return nil
		},
	}
	set.Flags().StringVar(&token, "token", "", "Bearer token")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]
			fmt.Printf("Profile:  %s\n", active)
			fmt.Printf("Base URL: %s\n", emptyOr(prof.BaseURL, "<unset>"))
			fmt.Printf("Token:    %s\n", maskToken(prof.Token))
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Clear stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]
			prof.Token = ""
			cfg.Profiles[active] = prof
			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Token cleared for '%s'\n", ui.ok("[OK]"), active)
			return nil
		},
	}

	auth.AddCommand(set, show, clear)
	return auth
}

func extractCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var (
		target     string
		bucket     string
		prefix     string
		webhook    string
		timeoutSec int
	)
	cmd := &cobra.Command{
		Use:     "extract",
		Short:   "Run an extraction",
		Example: "docharvest extract --url https://example.com/events --bucket my-bucket --prefix city/venue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(target) == "" {
				return errors.New("url is required")
			}
			if strings.TrimSpace(bucket) == "" {
				return errors.New("bucket is required")
			}
			if timeoutSec <= 0 {
				timeoutSec = 300
			}

			c := newClient(*baseURL, *token, time.Duration(timeoutSec)*time.Second)
			body := map[string]any{
				"url":       target,
				"s3_bucket": bucket,
			}
			if prefix != "" {
				body["s3_prefix"] = prefix
			}
			if webhook != "" {
				body["webhook"] = webhook
			}

			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Running extraction (this can take a while)..."
			spin.Start()
			status, resp, err := c.request("POST", "/extract", body)
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var out extractResp
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			printExtraction(ui, target, out)
			if out.Status == "FAILED" {
				return errors.New(out.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "url", "", "Target page URL")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Destination S3 bucket")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Object key prefix")
	cmd.Flags().StringVar(&webhook, "webhook", "", "Completion webhook URL")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 300, "Request timeout in seconds")
	return cmd
}

func batchCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var (
		bucket      string
		prefix      string
		concurrency int
		timeoutSec  int
	)
	cmd := &cobra.Command{
		Use:     "batch <url-file>",
		Short:   "Run extractions for every URL in a file",
		Example: "docharvest batch urls.txt --bucket my-bucket --concurrency 4",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(bucket) == "" {
				return errors.New("bucket is required")
			}
			urls, err := readURLFile(args[0])
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return errors.New("no URLs in file")
			}
			if concurrency <= 0 {
				concurrency = 1
			}
			if timeoutSec <= 0 {
				timeoutSec = 300
			}

			c := newClient(*baseURL, *token, time.Duration(timeoutSec)*time.Second)
			bar := progressbar.NewOptions(len(urls),
				progressbar.OptionSetDescription("Extracting"),
				progressbar.OptionSetWidth(18),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			type outcome struct {
				url  string
				resp extractResp
				err  error
			}
			jobs := make(chan string)
			results := make(chan outcome, len(urls))
			var wg sync.WaitGroup
			for i := 0; i < concurrency; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for u := range jobs {
						body := map[string]any{"url": u, "s3_bucket": bucket}
						if prefix != "" {
							body["s3_prefix"] = prefix
						}
						status, resp, err := c.request("POST", "/extract", body)
						o := outcome{url: u, err: err}
						if err == nil && status >= 300 {
							o.err = fmt.Errorf("error (%d): %s", status, string(resp))
						}
						if o.err == nil {
							o.err = json.Unmarshal(resp, &o.resp)
						}
						results <- o
						_ = bar.Add(1)
					}
				}()
			}
			for _, u := range urls {
				jobs <- u
			}
			close(jobs)
			wg.Wait()
			close(results)
			_ = bar.Finish()

			var files, failures int
			for o := range results {
				if o.err != nil {
					failures++
					fmt.Printf("%s %s: %v\n", ui.err("[FAIL]"), o.url, o.err)
					continue
				}
				files += o.resp.FilesUploaded
				label := ui.ok("[OK]")
				if o.resp.Status != "SUCCESS" {
					label = ui.warn("[" + o.resp.Status + "]")
				}
				fmt.Printf("%s %s: %s\n", label, o.url, o.resp.Message)
			}
			fmt.Printf("\n%s %d URLs, %d files uploaded, %d failed\n", ui.info("[DONE]"), len(urls), files, failures)
			if failures > 0 {
				return fmt.Errorf("%d of %d extractions failed", failures, len(urls))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "Destination S3 bucket")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Object key prefix")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Parallel extractions")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 300, "Per-request timeout in seconds")
	return cmd
}

func healthCmd(baseURL, token *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token, 10*time.Second)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Checking health..."
			spin.Start()
			status, resp, err := c.request("GET", "/health", nil)
			spin.Stop()
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("unhealthy (%d): %s", status, string(resp))
			}
			var out struct {
				Status  string `json:"status"`
				Version string `json:"version"`
			}
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			fmt.Printf("%s %s (version %s)\n", ui.ok("[OK]"), out.Status, out.Version)
			return nil
		},
	}
}

func printExtraction(ui *ui, target string, out extractResp) {
	label := ui.ok("[OK]")
	switch out.Status {
	case "PARTIAL_FAILURE", "NO_ARTIFACTS":
		label = ui.warn("[" + out.Status + "]")
	case "FAILED":
		label = ui.err("[FAILED]")
	}
	fmt.Printf("%s %s\n", label, out.Message)
	fmt.Printf("%s %s\n", ui.dim("url:"), target)
	for _, uri := range out.S3URIs {
		fmt.Printf("  %s %s\n", ui.info("uploaded"), uri)
	}
	for _, f := range out.FailedFiles {
		fmt.Printf("  %s %s: %s\n", ui.warn("failed"), f.File, f.Error)
	}
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := url.ParseRequestURI(line); err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", line, err)
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	b, err := termReadPassword()
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func termReadPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		return []byte(strings.TrimSpace(line)), err
	}
	return term.ReadPassword(fd)
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("DOCHARVEST_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".docharvest", "config.yaml")
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if v := strings.TrimSpace(os.Getenv("DOCHARVEST_PROFILE")); v != "" {
		return v
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func maskToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "<unset>"
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "..." + v[len(v)-4:]
}

func emptyOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func helpTemplate(ui *ui) string {
	title := ui.title("docharvest")
	return fmt.Sprintf(`%s — CLI for docharvest

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}
`, title)
}
