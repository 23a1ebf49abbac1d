package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NYUCCL/psiturk/internal/model"
	"github.com/NYUCCL/psiturk/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagWorkerID     string // participant add --worker
	flagAssignmentID string // participant add --assignment
	flagHitID        string // participant add --hit
	flagDebug        bool   // participant add --debug
)

func init() {
	participantAddCmd.Flags().StringVar(&flagWorkerID, "worker", "", "worker id")
	participantAddCmd.Flags().StringVar(&flagAssignmentID, "assignment", "", "assignment id")
	participantAddCmd.Flags().StringVar(&flagHitID, "hit", "", "hit id")
	participantAddCmd.Flags().BoolVar(&flagDebug, "debug", false, "generate random debug ids")
	participantAddCmd.MarkFlagsMutuallyExclusive("debug", "worker")
	participantAddCmd.MarkFlagsMutuallyExclusive("debug", "assignment")
	participantAddCmd.MarkFlagsMutuallyExclusive("debug", "hit")

	participantCmd.AddCommand(participantGetCmd)
	participantCmd.AddCommand(participantAddCmd)
}

var participantCmd = &cobra.Command{
	Use:   "participant",
	Short: "inspect and record participants",
}

var participantGetCmd = &cobra.Command{
	Use:   "get <uniqueid>",
	Short: "print a participant record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  doParticipantGet,
}

var participantAddCmd = &cobra.Command{
	Use:   "add",
	Short: "record a new participant which has accepted a HIT",
	Args:  cobra.NoArgs,
	RunE:  doParticipantAdd,
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	s, err := store.Open(contextOrBackground(cmd), config.Database.Path, config.Database.Table)
	if err != nil {
		return nil, fmt.Errorf("opening participant database: %w", err)
	}
	return s, nil
}

func doParticipantGet(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	p, err := s.Get(contextOrBackground(cmd), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func doParticipantAdd(cmd *cobra.Command, _ []string) error {
	ctx := contextOrBackground(cmd)
	workerID, assignmentID, hitID := flagWorkerID, flagAssignmentID, flagHitID
	if flagDebug {
		workerID = "debug" + debugID()
		assignmentID = "debug" + debugID()
		hitID = "debug" + debugID()
	}
	if workerID == "" || assignmentID == "" || hitID == "" {
		return errors.New("--worker, --assignment and --hit are required unless --debug is set")
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	uniqueID := model.UniqueID(workerID, assignmentID)
	if _, err := s.Get(ctx, uniqueID); err == nil {
		return fmt.Errorf("participant %s already exists", uniqueID)
	} else if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	p := model.NewParticipant(workerID, assignmentID, hitID, config.Task.CodeVersion, time.Now().UTC())
	if err := s.Put(ctx, p); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), p.UniqueID)
	return nil
}

// debugID returns a short random identifier like psiturk's debug ids
func debugID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}
