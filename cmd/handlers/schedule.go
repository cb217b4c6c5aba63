package handlers

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"blogsmith/internal/core"
	"blogsmith/internal/scheduler"
)

// NewScheduleCmd creates the schedule command group
func NewScheduleCmd() *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage and run recurring article generation schedules",
	}

	scheduleCmd.AddCommand(newScheduleRunCmd())
	scheduleCmd.AddCommand(newScheduleNextCmd())
	scheduleCmd.AddCommand(newScheduleAddCmd())
	scheduleCmd.AddCommand(newScheduleListCmd())

	return scheduleCmd
}

func newScheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute every active schedule whose next run has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			ran, err := s.coordinator.RunDue(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Println(subtleStyle.Render(fmt.Sprintf("%d schedule(s) executed", ran)))
			return nil
		},
	}
}

func newScheduleNextCmd() *cobra.Command {
	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Print the next fire time for a schedule spec without saving it",
		Example: `  blogsmith schedule next --frequency weekly --day-of-week 3 --time 09:00
  blogsmith schedule next --frequency monthly --day-of-month 31 --time 07:30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := scheduleFromFlags(cmd)
			if err != nil {
				return err
			}
			next, err := scheduler.NextRunTime(*schedule, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Println(next.Format(time.RFC1123))
			return nil
		},
	}
	addScheduleFlags(nextCmd)
	return nextCmd
}

func newScheduleAddCmd() *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a recurring schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := scheduleFromFlags(cmd)
			if err != nil {
				return err
			}
			targetURL, _ := cmd.Flags().GetString("target-url")
			if targetURL == "" {
				return fmt.Errorf("--target-url is required")
			}
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				id = uuid.New().String()
			}

			next, err := scheduler.NextRunTime(*schedule, time.Now().UTC())
			if err != nil {
				return err
			}
			schedule.ID = id
			schedule.UserID = userID
			schedule.TargetURL = targetURL
			schedule.IsActive = true
			schedule.NextRun = next

			s, err := buildStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.db.Schedules().Upsert(cmd.Context(), schedule); err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("schedule saved"))
			fmt.Println(subtleStyle.Render(fmt.Sprintf("id=%s next_run=%s", schedule.ID, next.Format(time.RFC1123))))
			return nil
		},
	}
	addScheduleFlags(addCmd)
	addCmd.Flags().String("id", "", "Schedule id (generated when omitted)")
	addCmd.Flags().String("user", "", "Owning user id")
	addCmd.Flags().String("target-url", "", "Seed URL the schedule generates from")
	return addCmd
}

func newScheduleListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			s, err := buildStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			schedules, err := s.db.Schedules().ListByUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(schedules) == 0 {
				fmt.Println(subtleStyle.Render("no schedules"))
				return nil
			}
			for _, schedule := range schedules {
				state := "active"
				if !schedule.IsActive {
					state = "paused"
				}
				fmt.Printf("%s  %s %s %s  next %s  %s\n",
					schedule.ID,
					schedule.Frequency,
					schedule.TimeOfDay,
					subtleStyle.Render(schedule.TargetURL),
					schedule.NextRun.Format(time.RFC1123),
					state,
				)
			}
			return nil
		},
	}
	listCmd.Flags().String("user", "", "Owning user id")
	return listCmd
}

func addScheduleFlags(cmd *cobra.Command) {
	cmd.Flags().String("frequency", "daily", "daily, weekly or monthly")
	cmd.Flags().Int("day-of-week", 0, "Day of week for weekly schedules (0=Sunday)")
	cmd.Flags().Int("day-of-month", 1, "Day of month for monthly schedules")
	cmd.Flags().String("time", "09:00", "Time of day, HH:MM 24h")
}

func scheduleFromFlags(cmd *cobra.Command) (*core.Schedule, error) {
	frequency, _ := cmd.Flags().GetString("frequency")
	switch core.ScheduleFrequency(frequency) {
	case core.FrequencyDaily, core.FrequencyWeekly, core.FrequencyMonthly:
	default:
		return nil, fmt.Errorf("invalid frequency %q", frequency)
	}

	dayOfWeek, _ := cmd.Flags().GetInt("day-of-week")
	dayOfMonth, _ := cmd.Flags().GetInt("day-of-month")
	timeOfDay, _ := cmd.Flags().GetString("time")

	return &core.Schedule{
		Frequency:  core.ScheduleFrequency(frequency),
		DayOfWeek:  dayOfWeek,
		DayOfMonth: dayOfMonth,
		TimeOfDay:  timeOfDay,
	}, nil
}
