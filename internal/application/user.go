package app

import (
	"context"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
)

type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.repo.Modify(ctx, userID, chatID, func(u *entity.User) {
		u.SetState(state)
	})
}

// BeginTask ждёт от пользователя название новой задачи.
func (s *UserService) BeginTask(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Modify(ctx, userID, chatID, func(u *entity.User) {
		moveTo(u, entity.StateAwaitingTitle)
	})
}

// SelectTask делает задачу активной и ждёт фото, если его ещё нет.
func (s *UserService) SelectTask(ctx context.Context, userID, chatID int64, task *entity.Task) (*entity.User, error) {
	return s.repo.Modify(ctx, userID, chatID, func(u *entity.User) {
		u.SelectTask(task.ID)
		if task.HasPhoto() {
			moveTo(u, entity.StateMainMenu)
		} else {
			moveTo(u, entity.StateAwaitingPhoto)
		}
	})
}

// ForgetTask сбрасывает активную задачу, если это taskID.
func (s *UserService) ForgetTask(ctx context.Context, userID, chatID, taskID int64) (*entity.User, error) {
	return s.repo.Modify(ctx, userID, chatID, func(u *entity.User) {
		if u.ActiveTaskID == taskID {
			u.SelectTask(0)
			moveTo(u, entity.StateMainMenu)
		}
	})
}

// Cancel возвращает пользователя в главное меню. Идущий анализ не прерывается,
// и состояние processing снимает только FinishProcessing.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Modify(ctx, userID, chatID, func(u *entity.User) {
		moveTo(u, entity.StateMainMenu)
	})
}

// BeginProcessing переводит пользователя в processing.
// Если анализ уже идёт, возвращает entity.ErrAnalysisRunning.
func (s *UserService) BeginProcessing(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	busy := false
	user, err := s.repo.Modify(ctx, userID, chatID, func(u *entity.User) {
		if u.IsProcessing() {
			busy = true
			return
		}
		u.SetState(entity.StateProcessing)
	})
	if err != nil {
		return nil, err
	}
	if busy {
		return user, entity.ErrAnalysisRunning
	}
	return user, nil
}

// FinishProcessing завершает анализ и возвращает пользователя в главное меню.
func (s *UserService) FinishProcessing(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

// moveTo меняет шаг диалога, не сбрасывая состояние идущего анализа.
func moveTo(u *entity.User, state entity.UserState) {
	if !u.IsProcessing() {
		u.SetState(state)
	}
}
