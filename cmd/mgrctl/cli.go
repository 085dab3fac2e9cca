package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"modelmgrd/pkg/types"
)

type client struct {
	base string
	http *http.Client
}

func (c *client) url(path string) string { return strings.TrimRight(c.base, "/") + path }

func (c *client) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.url(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func (c *client) postJSON(path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.url(path), "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func decodeOrError(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var e types.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return fmt.Errorf("%s (%s)", e.Error, e.Kind)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd() *cobra.Command {
	c := &client{http: &http.Client{Timeout: 10 * time.Minute}}

	root := &cobra.Command{
		Use:           "mgrctl",
		Short:         "Client for the modelmgrd HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.base, "server", envOr("MODELMGRD_SERVER", "http://127.0.0.1:8080"), "Base URL of the modelmgrd server")

	root.AddCommand(
		newStatusCmd(c),
		newModelsCmd(c),
		newLoadCmd(c),
		newUnloadCmd(c),
		newGenerateCmd(c),
		newSelectCmd(c),
		newPredictCmd(c),
		newPreloadCmd(c),
		newUsageCmd(c),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newStatusCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show manager status (budget, loaded models, counters)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st types.StatusResponse
			if err := c.getJSON("/v1/status", &st); err != nil {
				return err
			}
			return printJSON(st)
		},
	}
}

func newModelsCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered models and their live state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mr types.ModelsResponse
			if err := c.getJSON("/v1/models", &mr); err != nil {
				return err
			}
			return printJSON(mr)
		},
	}
}

func newLoadCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "load <model-id>",
		Short: "Load a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v types.ModelStateView
			if err := c.postJSON("/v1/models/"+args[0]+"/load", struct{}{}, &v); err != nil {
				return err
			}
			return printJSON(v)
		},
	}
}

func newUnloadCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "unload <model-id>",
		Short: "Unload a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v types.ModelStateView
			if err := c.postJSON("/v1/models/"+args[0]+"/unload", struct{}{}, &v); err != nil {
				return err
			}
			return printJSON(v)
		},
	}
}

func newGenerateCmd(c *client) *cobra.Command {
	var (
		model       string
		maxTokens   int
		temperature float64
		topP        float64
		system      string
		convID      string
		chat        bool
	)
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a completion, streaming tokens to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chat && convID == "" {
				convID = uuid.NewString()
				fmt.Fprintln(os.Stderr, "conversation:", convID)
			}
			req := types.GenerateRequest{
				Model:          model,
				Prompt:         args[0],
				SystemPrompt:   system,
				Stream:         true,
				MaxTokens:      maxTokens,
				Temperature:    temperature,
				TopP:           topP,
				ConversationID: convID,
			}
			return c.streamGenerate(req, os.Stdout)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model id (server default when empty)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 256, "Maximum new tokens")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature")
	cmd.Flags().Float64Var(&topP, "top-p", 0.9, "Nucleus sampling probability")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().StringVar(&convID, "conversation", "", "Conversation id for cached multi-turn state")
	cmd.Flags().BoolVar(&chat, "chat", false, "Mint a conversation id so follow-up turns reuse cached state")
	return cmd
}

// streamGenerate posts the request and writes streamed token text to w.
func (c *client) streamGenerate(req types.GenerateRequest, w io.Writer) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.url("/v1/generate"), "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeOrError(resp, nil)
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var line struct {
			Token string `json:"token"`
			Done  bool   `json:"done"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		if line.Done {
			fmt.Fprintln(w)
			break
		}
		fmt.Fprint(w, line.Token)
	}
	return sc.Err()
}

func newSelectCmd(c *client) *cobra.Command {
	var contextSize int
	cmd := &cobra.Command{
		Use:   "select <task-type>",
		Short: "Pick the best model for a task type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sel types.SelectResponse
			err := c.postJSON("/v1/select", types.SelectRequest{TaskType: args[0], ContextSize: contextSize}, &sel)
			if err != nil {
				return err
			}
			fmt.Println(sel.ModelID)
			return nil
		},
	}
	cmd.Flags().IntVar(&contextSize, "context-size", 0, "Minimum context window in tokens")
	return cmd
}

func newPredictCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "Show the models predicted to be needed soon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var pr types.PredictResponse
			if err := c.getJSON("/v1/predict", &pr); err != nil {
				return err
			}
			for _, id := range pr.ModelIDs {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newPreloadCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "preload <model-id>...",
		Short: "Best-effort preload of the given models",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pr types.PreloadResponse
			if err := c.postJSON("/v1/preload", types.PreloadRequest{ModelIDs: args}, &pr); err != nil {
				return err
			}
			return printJSON(pr)
		},
	}
}

func newUsageCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <model-id>",
		Short: "Record a usage event for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.postJSON("/v1/models/"+args[0]+"/usage", struct{}{}, nil)
		},
	}
}
