package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/lunaris/internal/scheduler"
	"github.com/wonny/lunaris/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `Starts the scheduler or runs its jobs by hand.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/lunaris scheduler start
  go run ./cmd/lunaris scheduler run timeline_refresh`,
}

var (
	refreshSchedule string
	labelSchedule   string

	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `Schedules the registered jobs and runs until Ctrl+C.

Jobs:
- timeline_refresh: 매주 일요일 03:00 (timeline rescan)
- label_prices: 매일 03:30 (PRICE_CSV relabel + persist, needs DATABASE_URL)`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().StringVar(&refreshSchedule, "refresh-schedule", "", "cron (with seconds) for timeline_refresh")
	schedulerCmd.PersistentFlags().StringVar(&labelSchedule, "label-schedule", "", "cron (with seconds) for label_prices")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, sched, err := initScheduler(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sched.Start()

	PrintHeader("Lunaris Scheduler", [][2]string{{"Study", a.study.Meta.StudyID}})
	printJobList(sched)
	fmt.Fprintln(console, "Press Ctrl+C to stop")

	<-ctx.Done()

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	printJobList(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := sched.RunNow(args[0])
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error)
	}

	PrintSuccess(fmt.Sprintf("%s completed in %.2fs", result.JobName, result.Duration.Seconds()))
	return nil
}

func printJobList(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	names := sched.GetAllJobs()
	sort.Strings(names)

	widths := []int{18, 16, 20}
	PrintTableHeader([]string{"Job", "Schedule", "Next run"}, widths)
	for _, name := range names {
		next := "-"
		if st := stats[name]; st.NextRun != nil {
			next = st.NextRun.Format("2006-01-02 15:04:05")
		}
		PrintTableRow([]string{name, stats[name].Schedule, next}, widths)
	}
}

func initScheduler(cmd *cobra.Command) (*app, *scheduler.Scheduler, error) {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log, scheduler.WithRetry(2, time.Minute), scheduler.WithJobTimeout(30*time.Minute))

	if err := sched.AddJob(jobs.NewTimelineRefreshJob(a.orchestrator, refreshSchedule, a.log)); err != nil {
		a.Close()
		return nil, nil, err
	}

	// 라벨 저장은 DB가 있을 때만 의미가 있음
	if a.repo != nil {
		loc, err := time.LoadLocation(a.cfg.PriceTimezone)
		if err != nil {
			a.Close()
			return nil, nil, err
		}
		job := jobs.NewLabelPricesJob(a.orchestrator, a.cfg.PriceCSV, loc, labelSchedule, a.log)
		if err := sched.AddJob(job); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	return a, sched, nil
}
