package entity

import "errors"

// ErrAnalysisRunning у пользователя уже идёт анализ
var ErrAnalysisRunning = errors.New("analysis is already running")

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingTitle UserState = "awaiting_title" // Ожидание названия новой задачи
	StateAwaitingPhoto UserState = "awaiting_photo" // Ожидание фото для активной задачи
	StateProcessing    UserState = "processing"     // Идёт анализ
)

// User представляет пользователя бота
type User struct {
	ID           int64     // Telegram User ID
	ChatID       int64     // Telegram Chat ID
	State        UserState // Текущее состояние пользователя
	ActiveTaskID int64     // Задача, с которой сейчас работает пользователь (0 если нет)
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// SelectTask делает задачу активной
func (u *User) SelectTask(taskID int64) {
	u.ActiveTaskID = taskID
}

// IsProcessing сообщает, что для пользователя идёт анализ
func (u *User) IsProcessing() bool {
	return u.State == StateProcessing
}

// HasActiveTask сообщает, выбрана ли задача
func (u *User) HasActiveTask() bool {
	return u.ActiveTaskID != 0
}
