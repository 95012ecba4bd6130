package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a downloaded model",
		Long: `Start an interactive conversation. The assistant can list, read, write,
create, delete and move files inside granted folders.

Commands inside the chat:
  /reset    start a new conversation
  /folders  list granted folders
  /quit     exit`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
	cmd.Flags().StringVar(&modelFlag, "model", "", "model id to load (default is the first downloaded model)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	modelID, err := pickModel(ctx, s)
	if err != nil {
		return err
	}
	fmt.Printf("Loading %s...\n", modelID)
	if err := s.app.SelectModel(ctx, modelID); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if addr := s.cfg.MetricsAddr; addr != "" && s.app.Metrics != nil {
		g.Go(func() error {
			return serveMetrics(gctx, addr, s.app.Metrics.Handler())
		})
	}

	g.Go(func() error {
		return s.app.Watch(gctx)
	})

	g.Go(func() error {
		defer cancel()
		return chatLoop(gctx, s)
	})

	return g.Wait()
}

// pickModel returns --model or the first downloaded model
func pickModel(ctx context.Context, s *session) (string, error) {
	if modelFlag != "" {
		return modelFlag, nil
	}
	list, err := s.app.Models.ListModels(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range list {
		if m.Selectable() {
			return m.ID, nil
		}
	}
	return "", errors.New("no downloaded models; run 'localwork models download <id>' first")
}

func chatLoop(ctx context.Context, s *session) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Println("Type a message, or /quit to exit.")
	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := s.app.Agent.Reset(); err != nil {
				fmt.Println(err)
			}
			continue
		case "/folders":
			printFolders(ctx, s)
			continue
		}

		reply, err := s.app.Agent.Send(ctx, line)
		switch {
		case errors.Is(err, api.ErrNoModelSelected):
			fmt.Println("No model is loaded. Restart with --model <id>.")
			continue
		case errors.Is(err, api.ErrSessionBusy):
			fmt.Println("Still waiting for the previous answer.")
			continue
		}
		printReply(reply)
	}
}

func printReply(msg api.ConversationMessage) {
	for _, call := range msg.ToolCalls {
		status := "ok"
		if call.Failed() {
			status = "failed"
		}
		result := ""
		if call.Result != nil {
			result = firstLine(*call.Result)
		}
		fmt.Printf("  [%s %s] %s\n", call.Name, status, result)
	}
	fmt.Println(msg.Content)
}

func printFolders(ctx context.Context, s *session) {
	perms, err := s.app.Folders.List(ctx)
	if err != nil {
		fmt.Println(err)
		return
	}
	if len(perms) == 0 {
		fmt.Println("No folders granted. Use 'localwork folders grant <path>'.")
		return
	}
	for _, p := range perms {
		fmt.Printf("  %s  %s\n", p.ID, p.Path)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
