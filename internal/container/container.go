package container

import (
	app "ecoregen/internal/application"
	"ecoregen/internal/domain/port"
)

type Container struct {
	UserService     *app.UserService
	TaskService     *app.TaskService
	AnalysisService *app.AnalysisService
}

// Deps внешние зависимости, из которых собираются сервисы
type Deps struct {
	Users      port.UserRepository
	Tasks      port.TaskRepository
	Models     port.DetectorProvider
	Publisher  port.ArtifactPublisher
	UploadsDir string
	OutputsDir string
}

func New(d Deps) *Container {
	ndvi := app.NewNdviEngine()
	segmentation := app.NewSegmentationEngine(d.Models)

	return &Container{
		UserService:     app.NewUserService(d.Users),
		TaskService:     app.NewTaskService(d.Tasks, d.UploadsDir, d.OutputsDir),
		AnalysisService: app.NewAnalysisService(d.Tasks, ndvi, segmentation, d.Publisher, d.OutputsDir),
	}
}
