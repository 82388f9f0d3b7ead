package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/events"
	"github.com/bizmarket/backend/internal/metrics"
	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/rbac"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MigrationService struct {
	escrows    EscrowStore
	checklists ChecklistStore
	advancer   EscrowAdvancer
	recorder
	log *zap.Logger
}

func NewMigrationService(
	escrows EscrowStore,
	checklists ChecklistStore,
	advancer EscrowAdvancer,
	audit AuditStore,
	publisher events.Publisher,
	log *zap.Logger,
) *MigrationService {
	return &MigrationService{
		escrows:    escrows,
		checklists: checklists,
		advancer:   advancer,
		recorder:   recorder{audit: audit, publisher: publisher, log: log},
		log:        log,
	}
}

// CreateChecklist opens the handover checklist of a funded escrow and moves
// the escrow into migration.
func (s *MigrationService) CreateChecklist(ctx context.Context, escrowID, userID uuid.UUID, withDefaults bool) (*models.ChecklistWithTasks, error) {
	e, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(rbac.PermManageChecklist, e.IsParty(userID), "escrow"); err != nil {
		return nil, err
	}
	ord, ranked := models.StatusOrdinal(e.Status)
	fundedOrd, _ := models.StatusOrdinal(models.EscrowStatusFunded)
	if !ranked || ord < fundedOrd {
		return nil, fmt.Errorf("%w: escrow must be funded before migration starts (status %s)", apperr.ErrInvalidTransition, e.Status)
	}

	if _, err := s.checklists.GetByEscrowID(ctx, escrowID); err == nil {
		return nil, fmt.Errorf("%w: escrow already has a migration checklist", apperr.ErrConflict)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	c := &models.MigrationChecklist{
		EscrowID:  e.ID,
		ListingID: e.ListingID,
		BuyerID:   e.BuyerID,
		SellerID:  e.SellerID,
		Status:    models.ChecklistStatusInProgress,
	}
	tasks := make([]models.MigrationChecklistTask, 0, len(models.DefaultTaskTemplates))
	if withDefaults {
		for _, tpl := range models.DefaultTaskTemplates {
			desc := tpl.Description
			tasks = append(tasks, models.MigrationChecklistTask{
				TaskName:        tpl.Name,
				TaskCategory:    tpl.Category,
				TaskDescription: &desc,
				Status:          models.TaskStatusPending,
			})
		}
	}
	if err := s.checklists.Create(ctx, c, tasks); err != nil {
		return nil, err
	}

	s.record(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorTypeUser,
		Action:      "checklist_created",
		EntityType:  models.EntityTypeChecklist,
		EntityID:    &c.ID,
		Meta:        map[string]any{"escrow_id": e.ID.String(), "tasks": len(tasks)},
	})

	if _, _, err := s.advancer.AdvanceFrom(ctx, e.ID, []string{models.EscrowStatusFunded}, models.EscrowStatusInMigration, &userID); err != nil {
		s.log.Error("failed to move escrow into migration",
			zap.String("op", "create_checklist"),
			zap.String("escrow_id", e.ID.String()),
			zap.Error(err))
	}

	models.SortTasks(tasks)
	return &models.ChecklistWithTasks{MigrationChecklist: *c, Tasks: tasks}, nil
}

// GetByEscrow returns the checklist and its tasks grouped by category.
func (s *MigrationService) GetByEscrow(ctx context.Context, escrowID, userID uuid.UUID) (*models.ChecklistWithTasks, error) {
	e, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(rbac.PermViewEscrow, e.IsParty(userID), "escrow"); err != nil {
		return nil, err
	}

	c, err := s.checklists.GetByEscrowID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.checklists.ListTasks(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &models.ChecklistWithTasks{MigrationChecklist: *c, Tasks: tasks}, nil
}

type AddTaskInput struct {
	TaskName        string
	TaskCategory    string
	TaskDescription *string
}

func (s *MigrationService) AddTask(ctx context.Context, checklistID, userID uuid.UUID, in AddTaskInput) (*models.MigrationChecklistTask, error) {
	c, err := s.checklists.GetByID(ctx, checklistID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(rbac.PermManageChecklist, c.IsParty(userID), "checklist"); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.TaskName)
	if name == "" {
		return nil, fmt.Errorf("%w: task_name is required", apperr.ErrInvalidInput)
	}
	if !models.IsValidTaskCategory(in.TaskCategory) {
		return nil, fmt.Errorf("%w: unknown task_category %q", apperr.ErrInvalidInput, in.TaskCategory)
	}
	if c.Status == models.ChecklistStatusComplete {
		return nil, fmt.Errorf("%w: checklist is already complete", apperr.ErrInvalidTransition)
	}

	t := &models.MigrationChecklistTask{
		ChecklistID:     c.ID,
		TaskName:        name,
		TaskCategory:    in.TaskCategory,
		TaskDescription: nonEmpty(in.TaskDescription),
		Status:          models.TaskStatusPending,
	}
	if err := s.checklists.CreateTask(ctx, t); err != nil {
		return nil, err
	}

	s.record(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorTypeUser,
		Action:      "task_added",
		EntityType:  models.EntityTypeChecklistTask,
		EntityID:    &t.ID,
		Meta:        map[string]any{"checklist_id": c.ID.String(), "category": t.TaskCategory},
	})
	return t, nil
}

// ConfirmTask records the caller's acknowledgement for every role it holds
// on the checklist. The second confirmation completes the task, and the last
// completed task completes the checklist.
func (s *MigrationService) ConfirmTask(ctx context.Context, taskID, userID uuid.UUID) (*models.MigrationChecklistTask, error) {
	var (
		changed           bool
		asBuyer, asSeller bool
	)
	t, c, err := s.checklists.UpdateTask(ctx, taskID, func(t *models.MigrationChecklistTask, c *models.MigrationChecklist) error {
		asBuyer, asSeller = c.PartyRoles(userID)
		if err := requireParty(rbac.PermConfirmTask, asBuyer || asSeller, "checklist"); err != nil {
			return err
		}
		changed = t.Confirm(asBuyer, asSeller, time.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if asBuyer {
			metrics.TaskConfirmationsTotal.WithLabelValues("buyer").Inc()
		}
		if asSeller {
			metrics.TaskConfirmationsTotal.WithLabelValues("seller").Inc()
		}
		s.record(ctx, models.AuditLog{
			ActorUserID: &userID,
			ActorType:   models.ActorTypeUser,
			Action:      "task_confirmed",
			EntityType:  models.EntityTypeChecklistTask,
			EntityID:    &t.ID,
			Meta: map[string]any{
				"checklist_id":     c.ID.String(),
				"buyer_confirmed":  t.BuyerConfirmed,
				"seller_confirmed": t.SellerConfirmed,
				"status":           t.Status,
			},
		})
		payload := checklistPayload(c)
		payload["task_id"] = t.ID.String()
		payload["task_status"] = t.Status
		s.publish(ctx, events.Event{Type: events.EventTaskConfirmed, Payload: payload})
	}

	if changed && t.Status == models.TaskStatusComplete {
		s.completeChecklist(ctx, c.ID, &userID)
	}
	return t, nil
}

// completeChecklist runs after a task reached complete. The confirmation is
// already committed, so failures here are logged rather than returned.
func (s *MigrationService) completeChecklist(ctx context.Context, checklistID uuid.UUID, actorID *uuid.UUID) {
	c, err := s.checklists.CompleteIfDone(ctx, checklistID)
	if err != nil {
		s.log.Error("failed to complete checklist",
			zap.String("op", "complete_checklist"),
			zap.String("checklist_id", checklistID.String()),
			zap.Error(err))
		return
	}
	if c == nil {
		return
	}

	metrics.ChecklistCompletionsTotal.Inc()
	s.record(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType(actorID),
		Action:      "checklist_completed",
		EntityType:  models.EntityTypeChecklist,
		EntityID:    &c.ID,
		Meta:        map[string]any{"escrow_id": c.EscrowID.String()},
	})
	s.publish(ctx, events.Event{Type: events.EventChecklistCompleted, Payload: checklistPayload(c)})
	s.log.Info("migration checklist completed",
		zap.String("checklist_id", c.ID.String()),
		zap.String("escrow_id", c.EscrowID.String()))

	from := []string{models.EscrowStatusInMigration, models.EscrowStatusMigrationInProgress}
	if _, _, err := s.advancer.AdvanceFrom(ctx, c.EscrowID, from, models.EscrowStatusComplete, nil); err != nil {
		s.log.Error("failed to complete escrow after checklist",
			zap.String("op", "complete_checklist"),
			zap.String("escrow_id", c.EscrowID.String()),
			zap.Error(err))
	}
}
