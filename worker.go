package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go_trading_automation/config"
	"go_trading_automation/models"
	"go_trading_automation/repository"
	"go_trading_automation/services/marketdata"
	"go_trading_automation/services/schedule"
	"go_trading_automation/services/signals"
	"go_trading_automation/services/tasks"
)

// runTaskWorker is the entry point for a dedicated task worker process. It
// runs one task on its schedule until the schedule disables it or the parent
// sends SIGTERM.
func runTaskWorker(args []string) {
	fs := flag.NewFlagSet("run-task", flag.ExitOnError)
	tenantID := fs.Uint("tenant", 0, "tenant id")
	taskName := fs.String("task", "", "task name")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Invalid worker arguments: %v", err)
	}
	if *tenantID == 0 || !models.IsValidTaskName(*taskName) {
		log.Fatalf("Worker requires --tenant and a valid --task, got tenant=%d task=%q", *tenantID, *taskName)
	}

	log.Printf("Task worker starting: tenant=%d task=%s pid=%d", *tenantID, *taskName, os.Getpid())

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}
	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Worker database connection failed: %v", err)
	}

	scheduleRepo := repository.NewScheduleRepository(db)
	statusRepo := repository.NewStatusRepository(db)
	executionRepo := repository.NewExecutionRepository(db)
	signalRepo := repository.NewSignalRepository(db)

	scheduleManager := schedule.NewManager()
	lifecycle, err := signals.NewLifecycle(signalRepo, cfg.ReactivationCutoff)
	if err != nil {
		log.Fatalf("Worker failed to initialize signal lifecycle: %v", err)
	}
	quoter := marketdata.NewQuoter()
	executor := tasks.NewDefaultExecutor(signalRepo, lifecycle, quoter,
		&tasks.WatchlistSource{Tickers: cfg.Watchlist, Quotes: quoter})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		sched, err := scheduleRepo.GetSchedule(*taskName)
		if err != nil {
			log.Fatalf("Worker failed to read schedule: %v", err)
		}
		if sched == nil || !sched.Enabled {
			log.Printf("Schedule for %s is gone or disabled, worker exiting", *taskName)
			break
		}

		next := scheduleManager.CalculateNextExecution(sched, time.Now())
		if next == nil {
			log.Printf("No next execution for %s, worker exiting", *taskName)
			break
		}
		if err := statusRepo.UpdateNextExecution(*tenantID, *taskName, next); err != nil {
			log.Printf("Worker failed to record next execution: %v", err)
		}

		wait := time.Until(*next)
		if wait < 0 {
			wait = 0
		}
		log.Printf("Next %s execution at %s (in %s)", *taskName, next.Format(time.RFC3339), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case sig := <-quit:
			timer.Stop()
			log.Printf("Worker received %v, exiting", sig)
			markWorkerStopped(statusRepo, *tenantID, *taskName)
			return
		case <-timer.C:
		}

		executeOnce(executionRepo, statusRepo, executor, *tenantID, *taskName)

		// Continuous tasks would otherwise spin; pace them.
		if sched.IsContinuous {
			select {
			case sig := <-quit:
				log.Printf("Worker received %v, exiting", sig)
				markWorkerStopped(statusRepo, *tenantID, *taskName)
				return
			case <-time.After(30 * time.Second):
			}
		}
	}

	markWorkerStopped(statusRepo, *tenantID, *taskName)
}

// executeOnce runs the task once and records the execution. Failures are
// captured in the record; the worker keeps its schedule.
func executeOnce(executions *repository.ExecutionRepository, statuses *repository.StatusRepository, executor tasks.Executor, tenantID uint, taskName string) {
	rec, err := executions.Create(tenantID, taskName, models.ExecutionScheduled)
	if err != nil {
		log.Printf("Worker failed to create execution record: %v", err)
		return
	}

	result, runErr := executor.Execute(tenantID, taskName)

	status := models.ExecutionStatusSuccess
	errMsg := ""
	if runErr != nil {
		status = models.ExecutionStatusFailed
		errMsg = runErr.Error()
		log.Printf("Task %s failed: %v", taskName, runErr)
	}
	if err := executions.Finalize(rec.ID, status, result, errMsg); err != nil {
		log.Printf("Worker failed to finalize execution %d: %v", rec.ID, err)
	}
	if err := statuses.UpdateLastExecution(tenantID, taskName, time.Now()); err != nil {
		log.Printf("Worker failed to update last execution: %v", err)
	}
}

func markWorkerStopped(statuses *repository.StatusRepository, tenantID uint, taskName string) {
	if err := statuses.MarkStopped(tenantID, taskName); err != nil {
		log.Printf("Worker failed to mark status stopped: %v", err)
	}
}
