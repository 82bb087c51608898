package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	app "ecoregen/internal/application"
	"ecoregen/internal/container"
	"ecoregen/internal/domain/entity"
	apperrors "ecoregen/internal/errors"
	"ecoregen/internal/logger"
)

const (
	msgStart = `👋 Привет! Я помогаю оценивать растительность по фотографиям.

🌿 NDVI — карта индекса вегетации (красный: мало растительности, зелёный: много).
🔍 Сегментация — поиск и подсветка объектов на фото.

📋 Команды:
/new — создать задачу
/tasks — список задач
/help — справка`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ /new — создайте задачу и отправьте её название
2️⃣ Пришлите фото (для многоканальных снимков — файлом, например TIFF или PNG)
   Отдельные каналы (NIR и др.) пришлите файлами с подписью band:
   они добавятся после каналов фото
3️⃣ Запустите анализ:
• /ndvi [red nir] — индексы каналов, по умолчанию 0 3
• /segment [primary|secondary] [порог] — по умолчанию primary 0.25

📋 Команды:
/tasks — список задач
/task <id> — выбрать задачу и посмотреть результаты
/delete [id] — удалить задачу
/cancel — отменить текущую операцию`

	msgAwaitingTitle   = "📝 Отправьте название задачи. Со второй строки можно добавить описание."
	msgAwaitingPhoto   = "📸 Отправьте фото для задачи «%s»."
	msgPhotoAttached   = "✅ Фото прикреплено к задаче «%s».\nЗапустите /ndvi или /segment."
	msgBandAttached    = "✅ Канал добавлен к задаче «%s», всего каналов-файлов: %d.\nНомер канала для /ndvi считается после каналов фото."
	msgAnalysisRunning = "⏳ Дождитесь завершения текущего анализа."
	msgStillProcessing = "⏳ Анализ уже запущен и будет доведён до конца."
	msgCancelled       = "❌ Операция отменена."
	msgNoActiveTask    = "📂 Сначала выберите задачу: /tasks, /task <id> или создайте новую через /new."
	msgNoTasks         = "📂 Задач пока нет. Создайте первую через /new."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgSendCommand     = "❓ Не понял сообщение. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgBusy            = "⏳ Сейчас слишком много задач в работе. Попробуйте чуть позже."
	msgTaskDeleted     = "🗑 Задача #%d удалена."
	msgBadArguments    = "⚠️ Не удалось разобрать параметры. %s"
	msgDownloadError   = "⚠️ Не удалось скачать файл. Попробуйте ещё раз."
	msgProcessingError = "⚠️ Не удалось выполнить операцию. Попробуйте ещё раз."
)

// Bot представляет Telegram-бота
type Bot struct {
	api      *tgbotapi.BotAPI
	users    *app.UserService
	tasks    *app.TaskService
	analysis *app.AnalysisService
	jobs     *errgroup.Group
}

// NewBot создаёт нового бота; workers ограничивает число одновременных анализов
func NewBot(token string, c *container.Container, workers int) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.WithField("account", api.Self.UserName).Info("telegram bot authorized")

	jobs := new(errgroup.Group)
	jobs.SetLimit(workers)

	return &Bot{
		api:      api,
		users:    c.UserService,
		tasks:    c.TaskService,
		analysis: c.AnalysisService,
		jobs:     jobs,
	}, nil
}

// Run обрабатывает обновления до отмены ctx и дожидается запущенных анализов
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

loop:
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			break loop
		case update, ok := <-updates:
			if !ok {
				break loop
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}

	return b.jobs.Wait()
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		logger.WithError(err).Error("get user failed")
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg, user)
	case len(msg.Photo) > 0:
		b.handleImage(ctx, msg, user, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil:
		b.handleImage(ctx, msg, user, msg.Document.FileID)
	case user.State == entity.StateAwaitingTitle && strings.TrimSpace(msg.Text) != "":
		b.handleTitle(ctx, msg, user)
	default:
		b.sendMessage(msg.Chat.ID, msgSendCommand)
	}
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.users.Cancel(ctx, user.ID, chatID)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "new":
		b.users.BeginTask(ctx, user.ID, chatID)
		b.sendMessage(chatID, msgAwaitingTitle)

	case "tasks":
		b.listTasks(ctx, chatID, user)

	case "task":
		b.selectTask(ctx, chatID, user, args)

	case "ndvi":
		b.startNdvi(ctx, chatID, user, args)

	case "segment":
		b.startSegmentation(ctx, chatID, user, args)

	case "delete":
		b.deleteTask(ctx, chatID, user, args)

	case "cancel":
		updated, err := b.users.Cancel(ctx, user.ID, chatID)
		if err == nil && updated.IsProcessing() {
			b.sendMessage(chatID, msgStillProcessing)
			return
		}
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleTitle создаёт задачу из текста: первая строка название, остальное описание
func (b *Bot) handleTitle(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	title, description, _ := strings.Cut(msg.Text, "\n")

	task, err := b.tasks.Create(ctx, user.ID, title, description)
	if err != nil {
		b.sendMessage(msg.Chat.ID, describeError(err))
		return
	}
	if _, err := b.users.SelectTask(ctx, user.ID, msg.Chat.ID, task); err != nil {
		logger.WithError(err).Error("select task failed")
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgAwaitingPhoto, task.Title))
}

// handleImage прикрепляет фото или файл-изображение к активной задаче.
// Файл с подписью band добавляется как дополнительный канал.
func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, user *entity.User, fileID string) {
	if !user.HasActiveTask() {
		b.sendMessage(msg.Chat.ID, msgNoActiveTask)
		return
	}
	if user.IsProcessing() {
		b.sendMessage(msg.Chat.ID, msgAnalysisRunning)
		return
	}

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		logger.WithError(err).WithField("file_id", fileID).Warn("download failed")
		b.sendMessage(msg.Chat.ID, msgDownloadError)
		return
	}

	if isBandCaption(msg.Caption) {
		task, err := b.tasks.AttachBand(ctx, user.ID, user.ActiveTaskID, data)
		if err != nil {
			b.sendMessage(msg.Chat.ID, describeError(err))
			return
		}
		b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgBandAttached, task.Title, len(task.BandPaths)))
		return
	}

	task, err := b.tasks.AttachPhoto(ctx, user.ID, user.ActiveTaskID, data)
	if err != nil {
		b.sendMessage(msg.Chat.ID, describeError(err))
		return
	}

	b.users.Cancel(ctx, user.ID, msg.Chat.ID)
	b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgPhotoAttached, task.Title))
}

func (b *Bot) listTasks(ctx context.Context, chatID int64, user *entity.User) {
	tasks, err := b.tasks.List(ctx, user.ID)
	if err != nil {
		b.sendMessage(chatID, describeError(err))
		return
	}
	if len(tasks) == 0 {
		b.sendMessage(chatID, msgNoTasks)
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Ваши задачи:\n")
	for _, t := range tasks {
		marker := ""
		if t.ID == user.ActiveTaskID {
			marker = " 👈"
		}
		fmt.Fprintf(&sb, "\n#%d %s%s\n  фото: %s, NDVI: %s, сегментация: %s\n",
			t.ID, t.Title, marker, yesNo(t.HasPhoto()), stateLabel(t.Ndvi.State()), stateLabel(t.Segmentation.State()))
	}
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) selectTask(ctx context.Context, chatID int64, user *entity.User, args []string) {
	if len(args) != 1 {
		b.sendMessage(chatID, fmt.Sprintf(msgBadArguments, "Пример: /task 3"))
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		b.sendMessage(chatID, fmt.Sprintf(msgBadArguments, "Пример: /task 3"))
		return
	}

	task, err := b.tasks.Get(ctx, user.ID, id)
	if err != nil {
		b.sendMessage(chatID, describeError(err))
		return
	}
	if _, err := b.users.SelectTask(ctx, user.ID, chatID, task); err != nil {
		logger.WithError(err).Error("select task failed")
	}
	b.sendMessage(chatID, describeTask(task))
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, user *entity.User, args []string) {
	id := user.ActiveTaskID
	if len(args) > 0 {
		parsed, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
		if err != nil {
			b.sendMessage(chatID, fmt.Sprintf(msgBadArguments, "Пример: /delete 3"))
			return
		}
		id = parsed
	}
	if id == 0 {
		b.sendMessage(chatID, msgNoActiveTask)
		return
	}
	if user.IsProcessing() {
		b.sendMessage(chatID, msgAnalysisRunning)
		return
	}

	if err := b.tasks.Delete(ctx, user.ID, id); err != nil {
		b.sendMessage(chatID, describeError(err))
		return
	}
	b.users.ForgetTask(ctx, user.ID, chatID, id)
	b.sendMessage(chatID, fmt.Sprintf(msgTaskDeleted, id))
}

func (b *Bot) startNdvi(ctx context.Context, chatID int64, user *entity.User, args []string) {
	if !user.HasActiveTask() {
		b.sendMessage(chatID, msgNoActiveTask)
		return
	}
	bands, err := parseBands(args)
	if err != nil {
		b.sendMessage(chatID, fmt.Sprintf(msgBadArguments, err.Error()))
		return
	}

	taskID := user.ActiveTaskID
	b.dispatch(ctx, chatID, user, func(ctx context.Context) {
		outcome, err := b.analysis.RunNdvi(ctx, user.ID, taskID, bands)
		b.reportOutcome(chatID, "🌿 NDVI", outcome, err)
	})
}

func (b *Bot) startSegmentation(ctx context.Context, chatID int64, user *entity.User, args []string) {
	if !user.HasActiveTask() {
		b.sendMessage(chatID, msgNoActiveTask)
		return
	}
	method, confidence, err := parseSegmentation(args)
	if err != nil {
		b.sendMessage(chatID, fmt.Sprintf(msgBadArguments, err.Error()))
		return
	}

	taskID := user.ActiveTaskID
	b.dispatch(ctx, chatID, user, func(ctx context.Context) {
		outcome, err := b.analysis.RunSegmentation(ctx, user.ID, taskID, method, confidence)
		b.reportOutcome(chatID, "🔍 Сегментация", outcome, err)
	})
}

// dispatch запускает анализ в пуле; у пользователя одновременно идёт не больше одного анализа.
// При заполненном пуле сообщает пользователю.
// Анализ не прерывается остановкой бота: Run дожидается его завершения.
func (b *Bot) dispatch(ctx context.Context, chatID int64, user *entity.User, run func(ctx context.Context)) {
	jobCtx := context.WithoutCancel(ctx)
	if _, err := b.users.BeginProcessing(ctx, user.ID, chatID); err != nil {
		b.sendMessage(chatID, describeError(err))
		return
	}

	started := b.jobs.TryGo(func() error {
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).Error("analysis job crashed")
				b.sendMessage(chatID, msgProcessingError)
			}
			b.users.FinishProcessing(jobCtx, user.ID, chatID)
		}()
		run(jobCtx)
		return nil
	})
	if !started {
		b.users.FinishProcessing(ctx, user.ID, chatID)
		b.sendMessage(chatID, msgBusy)
		return
	}

	b.sendMessage(chatID, msgProcessing)
}

func (b *Bot) reportOutcome(chatID int64, title string, outcome *app.AnalysisOutcome, err error) {
	if err != nil {
		b.sendMessage(chatID, describeError(err))
		return
	}
	if outcome.Err != nil {
		b.sendMessage(chatID, fmt.Sprintf("%s: %s", title, describeError(outcome.Err)))
		return
	}

	caption := fmt.Sprintf("%s: готово для задачи «%s»", title, outcome.Task.Title)
	if outcome.FellBack {
		caption += fmt.Sprintf("\nОсновная модель не справилась, ответила запасная (%s).", outcome.Backend)
	} else if outcome.Backend != "" {
		caption += fmt.Sprintf(" (метод: %s)", outcome.Backend)
	}
	if outcome.Ref != "" {
		caption += "\n" + outcome.Ref
	}
	b.sendPhoto(chatID, outcome.LocalPath, caption)
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		logger.WithError(err).WithField("chat_id", chatID).Warn("send message failed")
	}
}

// sendPhoto отправляет изображение с диска
func (b *Bot) sendPhoto(chatID int64, path, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "path": path}).Warn("send photo failed")
		b.sendMessage(chatID, caption)
	}
}

// describeError превращает ошибку в текст для пользователя
func describeError(err error) string {
	switch {
	case errors.Is(err, entity.ErrTaskNotFound):
		return "⚠️ Задача не найдена."
	case errors.Is(err, entity.ErrForbidden):
		return "⛔ Это задача другого пользователя."
	case errors.Is(err, entity.ErrEmptyTitle):
		return "⚠️ Название задачи не может быть пустым."
	case errors.Is(err, entity.ErrAnalysisRunning):
		return msgAnalysisRunning
	case errors.Is(err, entity.ErrTooManyLayers):
		return fmt.Sprintf("⚠️ Можно приложить не больше %d файлов-каналов.", entity.MaxBandLayers)
	}

	diag := apperrors.Diagnostic(err)
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeInvalidInput:
		return "⚠️ Некорректные данные: " + diag
	case apperrors.ErrorTypeIoFailure:
		return "⚠️ Ошибка чтения или записи файла: " + diag
	case apperrors.ErrorTypeBackendUnavailable:
		return "⚠️ Модель недоступна: " + diag
	case apperrors.ErrorTypeNoDetections:
		return "🔍 Объекты не найдены: " + diag
	default:
		logger.WithError(err).Error("unexpected error")
		return msgProcessingError
	}
}

func describeTask(t *entity.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📌 Задача #%d: %s\n", t.ID, t.Title)
	if t.Description != "" {
		fmt.Fprintf(&sb, "%s\n", t.Description)
	}
	fmt.Fprintf(&sb, "\nФото: %s\n", yesNo(t.HasPhoto()))
	if len(t.BandPaths) > 0 {
		fmt.Fprintf(&sb, "Доп. каналы: %d\n", len(t.BandPaths))
	}
	sb.WriteString(describeArtifact("NDVI", t.Ndvi.State(), t.Ndvi.Ref, t.Ndvi.Diagnostic))
	sb.WriteString(describeArtifact("Сегментация", t.Segmentation.State(), t.Segmentation.Ref, t.Segmentation.Diagnostic))
	if !t.HasPhoto() {
		sb.WriteString("\n📸 Отправьте фото для этой задачи.")
	}
	return sb.String()
}

func describeArtifact(name string, state entity.ArtifactState, ref, diag func() (string, bool)) string {
	switch state {
	case entity.ArtifactReady:
		r, _ := ref()
		return fmt.Sprintf("%s: ✅ %s\n", name, r)
	case entity.ArtifactFailed:
		d, _ := diag()
		return fmt.Sprintf("%s: ❌ %s\n", name, d)
	default:
		return fmt.Sprintf("%s: не запускался\n", name)
	}
}

func stateLabel(s entity.ArtifactState) string {
	switch s {
	case entity.ArtifactReady:
		return "✅"
	case entity.ArtifactFailed:
		return "❌"
	default:
		return "—"
	}
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}
