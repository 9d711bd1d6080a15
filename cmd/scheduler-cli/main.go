// Command scheduler-cli runs the solver offline against a SolverInput
// JSON file, for local experimentation and CI fixtures without standing
// up the HTTP service.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
	"github.com/sis-scheduler/scheduler-core/internal/solver"
)

var (
	inputPath      string
	outputPath     string
	timeLimitSecs  int
	numWorkers     int
)

func main() {
	root := &cobra.Command{
		Use:   "scheduler-cli",
		Short: "Offline course scheduling solver",
		Long:  "Runs the scheduler-core solver against a SolverInput JSON file and prints the resulting SolverOutput.",
	}

	cmdSolve := &cobra.Command{
		Use:   "solve",
		Short: "solve a SolverInput JSON file",
		Run:   commandSolve,
	}
	cmdSolve.Flags().StringVarP(&inputPath, "input", "i", "", "path to a SolverInput JSON file (required)")
	cmdSolve.Flags().StringVarP(&outputPath, "output", "o", "", "path to write the SolverOutput JSON (default: stdout)")
	cmdSolve.Flags().IntVarP(&timeLimitSecs, "time-limit", "t", 0, "override the input's time limit in seconds")
	cmdSolve.Flags().IntVarP(&numWorkers, "workers", "w", 0, "override the input's worker count")
	_ = cmdSolve.MarkFlagRequired("input")
	root.AddCommand(cmdSolve)

	cmdValidate := &cobra.Command{
		Use:   "validate",
		Short: "report unschedulable sections in a SolverInput JSON file without solving",
		Run:   commandValidate,
	}
	cmdValidate.Flags().StringVarP(&inputPath, "input", "i", "", "path to a SolverInput JSON file (required)")
	_ = cmdValidate.MarkFlagRequired("input")
	root.AddCommand(cmdValidate)

	if err := root.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func loadInput() *domain.SolverInput {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("reading %s: %v", inputPath, err)
	}
	var in domain.SolverInput
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Fatalf("parsing %s: %v", inputPath, err)
	}
	return &in
}

func commandSolve(cmd *cobra.Command, args []string) {
	in := loadInput()
	if timeLimitSecs > 0 {
		in.TimeLimitSeconds = timeLimitSecs
	}
	if numWorkers > 0 {
		in.NumWorkers = numWorkers
	}

	out := solver.Solve(context.Background(), uuid.New(), in)

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("encoding solver output: %v", err)
	}

	if outputPath == "" {
		os.Stdout.Write(encoded)
		os.Stdout.Write([]byte("\n"))
		return
	}
	if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
		log.Fatalf("writing %s: %v", outputPath, err)
	}
	log.Printf("wrote %s (status=%s, assigned=%d/%d)", outputPath, out.Result.Status, countAssigned(out), len(out.Assignments))
}

func commandValidate(cmd *cobra.Command, args []string) {
	in := loadInput()

	allRooms := domain.NewUUIDSet()
	for _, r := range in.Rooms {
		allRooms[r.ID] = struct{}{}
	}
	allPatterns := domain.NewUUIDSet()
	for _, p := range in.MeetingPatterns {
		allPatterns[p.ID] = struct{}{}
	}

	issueCount := 0
	for _, section := range in.Sections {
		allowedRooms := section.AllowedRoomIDs
		if allowedRooms == nil {
			allowedRooms = allRooms
		}
		validRooms := 0
		for _, r := range in.Rooms {
			if _, ok := allowedRooms[r.ID]; ok && r.Capacity >= section.ExpectedEnrollment {
				validRooms++
			}
		}
		if validRooms == 0 {
			issueCount++
			log.Printf("section %s: no room with capacity >= %d", section.ID, section.ExpectedEnrollment)
		}

		allowedPatterns := section.AllowedMeetingPatternIDs
		if allowedPatterns == nil {
			allowedPatterns = allPatterns
		}
		if len(allowedPatterns) == 0 {
			issueCount++
			log.Printf("section %s: no allowed meeting patterns", section.ID)
		}
	}

	if issueCount == 0 {
		log.Printf("valid: %d sections, %d rooms, %d patterns", len(in.Sections), len(in.Rooms), len(in.MeetingPatterns))
		return
	}
	log.Fatalf("%d issue(s) found", issueCount)
}

func countAssigned(out domain.SolverOutput) int {
	n := 0
	for _, a := range out.Assignments {
		if a.IsAssigned {
			n++
		}
	}
	return n
}
