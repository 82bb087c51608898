package entity

// ArtifactState состояние результата анализа
type ArtifactState int

const (
	ArtifactAbsent ArtifactState = iota // анализ ещё не запускался
	ArtifactReady                       // есть готовое изображение
	ArtifactFailed                      // последняя попытка завершилась ошибкой
)

func (s ArtifactState) String() string {
	switch s {
	case ArtifactReady:
		return "ready"
	case ArtifactFailed:
		return "failed"
	default:
		return "absent"
	}
}

// Artifact последняя попытка анализа одного вида.
// Нулевое значение означает отсутствие попыток. Ссылка и диагностика
// взаимоисключающие: построить значение можно только через конструкторы.
type Artifact[P any] struct {
	state      ArtifactState
	ref        string
	diagnostic string
	params     P
}

// ReadyArtifact успешный результат со ссылкой на изображение.
func ReadyArtifact[P any](ref string, params P) Artifact[P] {
	return Artifact[P]{state: ArtifactReady, ref: ref, params: params}
}

// FailedArtifact неудачная попытка с диагностикой.
func FailedArtifact[P any](diagnostic string, params P) Artifact[P] {
	return Artifact[P]{state: ArtifactFailed, diagnostic: diagnostic, params: params}
}

func (a Artifact[P]) State() ArtifactState {
	return a.state
}

// Ref возвращает ссылку на изображение, если результат готов.
func (a Artifact[P]) Ref() (string, bool) {
	return a.ref, a.state == ArtifactReady
}

// Diagnostic возвращает текст ошибки, если попытка неудачна.
func (a Artifact[P]) Diagnostic() (string, bool) {
	return a.diagnostic, a.state == ArtifactFailed
}

// Params возвращает параметры попытки; для absent их нет.
func (a Artifact[P]) Params() (P, bool) {
	return a.params, a.state != ArtifactAbsent
}
