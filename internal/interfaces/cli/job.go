package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolDock-Screen/pkg/client"
	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

// JobSubmitOptions holds flags for job submit.
type JobSubmitOptions struct {
	Name         string
	ReceptorKey  string
	LibraryKey   string
	Center       []float64
	Size         []float64
	TotalLigands int64
	Email        string
	Wait         bool
	PollInterval time.Duration
}

// JobListOptions holds flags for job list.
type JobListOptions struct {
	Status   string
	Page     int
	PageSize int
}

// jobTable adapts a job slice to the table output contract.
type jobTable struct {
	Jobs []*client.Job `json:"jobs"`
}

func (t *jobTable) TableHeaders() []string {
	return []string{"ID", "NAME", "STATUS", "PROGRESS", "LIGANDS", "CREATED"}
}

func (t *jobTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t.Jobs))
	for _, j := range t.Jobs {
		rows = append(rows, []string{
			j.ID,
			j.Name,
			j.Status,
			fmt.Sprintf("%.1f%%", j.PercentComplete),
			strconv.FormatInt(j.TotalLigands, 10),
			j.CreatedAt.Format(time.RFC3339),
		})
	}
	return rows
}

// hitTable adapts a hit slice to the table output contract.
type hitTable struct {
	JobID string       `json:"job_id"`
	Hits  []client.Hit `json:"hits"`
}

func (t *hitTable) TableHeaders() []string {
	return []string{"RANK", "LIGAND", "ENERGY (kcal/mol)"}
}

func (t *hitTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t.Hits))
	for _, h := range t.Hits {
		rows = append(rows, []string{
			strconv.Itoa(h.Rank),
			h.Ligand,
			strconv.FormatFloat(h.Energy, 'f', 3, 64),
		})
	}
	return rows
}

// NewJobCommand creates the job command group for managing screening jobs on
// a remote API server.
func NewJobCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage screening jobs on the API server",
	}

	cmd.AddCommand(
		newJobSubmitCommand(),
		newJobGetCommand(),
		newJobListCommand(),
		newJobCancelCommand(),
		newJobHitsCommand(),
		newJobResultCommand(),
	)

	return cmd
}

func newJobSubmitCommand() *cobra.Command {
	opts := &JobSubmitOptions{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new screening job",
		Example: `  moldock job submit --name "kinase screen" \
    --receptor-key receptors/kinase.pdbqt --library-key libraries/zinc-10k.pdbqt \
    --center 12.5,8.0,-3.25 --size 20,20,20 --ligands 10000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobSubmit(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Name, "name", "", "job name (required)")
	f.StringVar(&opts.ReceptorKey, "receptor-key", "", "object storage key of the receptor (required)")
	f.StringVar(&opts.LibraryKey, "library-key", "", "object storage key of the ligand library (required)")
	f.Float64SliceVar(&opts.Center, "center", nil, "search box center x,y,z in Å (required)")
	f.Float64SliceVar(&opts.Size, "size", nil, "search box size x,y,z in Å (required)")
	f.Int64Var(&opts.TotalLigands, "ligands", 0, "total ligand count in the library (required)")
	f.StringVar(&opts.Email, "email", "", "notification address for job completion")
	f.BoolVar(&opts.Wait, "wait", false, "block until the job reaches a terminal state")
	f.DurationVar(&opts.PollInterval, "poll-interval", 5*time.Second, "status poll interval with --wait")

	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("receptor-key")
	cmd.MarkFlagRequired("library-key")
	cmd.MarkFlagRequired("center")
	cmd.MarkFlagRequired("size")
	cmd.MarkFlagRequired("ligands")

	return cmd
}

func runJobSubmit(cmd *cobra.Command, opts *JobSubmitOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cliCtx.Client == nil {
		return errors.New(errors.ErrCodeInternal, "no API client configured")
	}

	if len(opts.Center) != 3 || len(opts.Size) != 3 {
		return errors.New(errors.ErrCodeValidation, "center and size each require exactly three comma-separated values")
	}

	req := &client.SubmitJobRequest{
		Name:         opts.Name,
		ReceptorKey:  opts.ReceptorKey,
		LibraryKey:   opts.LibraryKey,
		Center:       [3]float64{opts.Center[0], opts.Center[1], opts.Center[2]},
		Size:         [3]float64{opts.Size[0], opts.Size[1], opts.Size[2]},
		TotalLigands: opts.TotalLigands,
		Email:        opts.Email,
	}

	ctx := cmd.Context()
	job, err := cliCtx.Client.Jobs().Submit(ctx, req)
	if err != nil {
		return err
	}

	if !opts.Wait {
		return PrintResult(cmd, job)
	}

	PrintSuccess(cmd, fmt.Sprintf("job %s submitted, waiting for completion", job.ID))
	final, err := waitForJob(ctx, cliCtx.Client, job.ID, opts.PollInterval)
	if err != nil {
		return err
	}
	return PrintResult(cmd, final)
}

// waitForJob polls the job until it reaches a terminal state or ctx expires.
func waitForJob(ctx context.Context, c *client.Client, jobID string, interval time.Duration) (*client.Job, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.Jobs().Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case "completed", "failed", "canceled":
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "gave up waiting for job")
		case <-ticker.C:
		}
	}
}

func newJobGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show a screening job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.New(errors.ErrCodeInternal, "no API client configured")
			}

			job, err := cliCtx.Client.Jobs().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, job)
		},
	}
}

func newJobListCommand() *cobra.Command {
	opts := &JobListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List screening jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.New(errors.ErrCodeInternal, "no API client configured")
			}

			list, err := cliCtx.Client.Jobs().List(cmd.Context(), &client.ListJobsOptions{
				Status:   opts.Status,
				Page:     opts.Page,
				PageSize: opts.PageSize,
			})
			if err != nil {
				return err
			}
			return PrintResult(cmd, &jobTable{Jobs: list.Jobs})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Status, "status", "", "filter by status (pending, running, completed, failed, canceled)")
	f.IntVar(&opts.Page, "page", 1, "page number")
	f.IntVar(&opts.PageSize, "page-size", 20, "page size")

	return cmd
}

func newJobCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.New(errors.ErrCodeInternal, "no API client configured")
			}

			if err := cliCtx.Client.Jobs().Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("job %s cancelled", args[0]))
			return nil
		},
	}
}

func newJobHitsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "hits <job-id>",
		Short: "Show the top-ranked hits of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.New(errors.ErrCodeInternal, "no API client configured")
			}

			hits, err := cliCtx.Client.Jobs().TopHits(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &hitTable{JobID: args[0], Hits: hits})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of hits to fetch")
	return cmd
}

func newJobResultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "result <job-id>",
		Short: "Print a presigned download URL for the full result CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.New(errors.ErrCodeInternal, "no API client configured")
			}

			url, err := cliCtx.Client.Jobs().ResultURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, url)
		},
	}
}
