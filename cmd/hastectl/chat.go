package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

type chatReply struct {
	Reply    string `json:"reply"`
	VideoURL string `json:"video_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// runChat sends one message as identity (the anonymous cookie value) or with
// token, and prints the reply followed by any media link.
func runChat(apiURL, identity, token, message string, student bool, out io.Writer) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	req := resty.New().SetTimeout(5 * time.Minute).R().
		SetBody(map[string]any{"message": message, "studentMode": student}).
		SetResult(&chatReply{})
	if identity != "" {
		req.SetHeader("Cookie", "haste_id="+identity)
	}
	if token != "" {
		req.SetAuthToken(token)
	}
	resp, err := req.Post(strings.TrimRight(apiURL, "/") + "/api/chat")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	r := resp.Result().(*chatReply)
	_, _ = fmt.Fprintln(out, r.Reply)
	for _, u := range []string{r.VideoURL, r.ImageURL} {
		if u != "" {
			_, _ = fmt.Fprintln(out, u)
		}
	}
	return nil
}

func init() {
	var identity, token string
	var student bool
	chatCmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Send a chat message to a running service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(apiFlag, identity, token, strings.Join(args, " "), student, os.Stdout)
		},
	}
	chatCmd.Flags().StringVarP(&identity, "identity", "i", "", "Anonymous identity (a UUID previously minted by the service) sent as the session cookie")
	chatCmd.Flags().StringVarP(&token, "token", "t", "", "Bearer token (see `hastectl token`)")
	chatCmd.Flags().BoolVarP(&student, "student", "s", false, "Request student mode")
	rootCmd.AddCommand(chatCmd)
}
