package models

// Catalog - начальные данные развертывания: драмы, ассеты и библиотека
// сценариев для генератора по каталогу.
type Catalog struct {
	Dramas  []Drama         `yaml:"dramas"`
	Assets  []Asset         `yaml:"assets"`
	Scripts []ScriptOutline `yaml:"scripts"`
}

// ScriptOutline - заготовка продолжения для генератора по каталогу.
type ScriptOutline struct {
	DramaID         string   `yaml:"drama_id"`
	Script          string   `yaml:"script"`
	ThumbnailURL    string   `yaml:"thumbnail_url"`
	VideoURL        string   `yaml:"video_url"`
	DurationSeconds float64  `yaml:"duration_seconds"`
	ActorIDs        []string `yaml:"actor_ids"`
	SceneID         string   `yaml:"scene_id"`
	PropIDs         []string `yaml:"prop_ids"`
}
