package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/infrastructure/redisstream"
	"github.com/janhq/evaluator-server/internal/utils/idgen"
)

const streamCommandTimeout = 10 * time.Second

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Redis stream commands",
}

var streamStatCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show stream lengths and the consumer offset",
	RunE:  runStreamStat,
}

var streamDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Append a test task to the request stream",
	Long:  `Append one inference task to REQUEST_STREAM, bypassing the HTTP API. Useful to smoke-test workers.`,
	RunE:  runStreamDispatch,
}

func init() {
	streamCmd.AddCommand(streamStatCmd)
	streamCmd.AddCommand(streamDispatchCmd)

	streamDispatchCmd.Flags().String("user", "guest_cli", "User id placed on the task")
	streamDispatchCmd.Flags().String("conversation", "", "Conversation id (default: random)")
	streamDispatchCmd.Flags().String("message", "ping", "Message text")
	streamDispatchCmd.Flags().Bool("guest", true, "Mark the task as coming from a guest")
}

func runStreamStat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := redisstream.NewClient(cfg.RedisURL, zerolog.Nop())
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), streamCommandTimeout)
	defer cancel()
	stats, err := redisstream.Inspect(ctx, client, cfg.RequestStream, cfg.ResultStream, cfg.ResultStreamOffsetKey)
	if err != nil {
		return fmt.Errorf("inspect streams: %w", err)
	}

	data, err := yaml.Marshal(stats)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runStreamDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := redisstream.NewClient(cfg.RedisURL, zerolog.Nop())
	if err != nil {
		return err
	}
	defer client.Close()

	userID, _ := cmd.Flags().GetString("user")
	conversationID, _ := cmd.Flags().GetString("conversation")
	message, _ := cmd.Flags().GetString("message")
	isGuest, _ := cmd.Flags().GetBool("guest")
	if conversationID == "" {
		conversationID = idgen.NewUUID()
	}

	task := inference.Task{
		CorrelationID:  idgen.NewUUID(),
		UserID:         userID,
		ConversationID: conversationID,
		RoomID:         conversationID,
		Message:        message,
		Context:        inference.EmptyContext,
		IsGuest:        isGuest,
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), streamCommandTimeout)
	defer cancel()
	dispatcher := redisstream.NewDispatcher(client, cfg.RequestStream, cfg.RequestStreamMaxLen, zerolog.Nop())
	id, err := dispatcher.Dispatch(ctx, task)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "dispatched %s to %s (correlationId=%s, conversationId=%s)\n",
		id, cfg.RequestStream, task.CorrelationID, task.ConversationID)
	return nil
}
