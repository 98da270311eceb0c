// 导入示例练习
//
// 练习经过与接口相同的校验（题型、答案键结构、题目顺序）后写入数据库。
//
// 用法: go run scripts/seed_exercises.go -config configs -file scripts/seed_exercises.yaml

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"corptrain_backend/internal/config"
	"corptrain_backend/internal/model"
	"corptrain_backend/internal/repository"
	"corptrain_backend/internal/service"
	"corptrain_backend/pkg/database"
	"corptrain_backend/pkg/logger"

	"gopkg.in/yaml.v3"
)

type seedItem struct {
	OrderIndex    *int        `yaml:"order_index"`
	Content       interface{} `yaml:"content"`
	CorrectAnswer interface{} `yaml:"correct_answer"`
	Points        int         `yaml:"points"`
	Hint          string      `yaml:"hint"`
	Explanation   string      `yaml:"explanation"`
	MediaRef      string      `yaml:"media_ref"`
}

type seedExercise struct {
	Title               string     `yaml:"title"`
	Type                string     `yaml:"type"`
	Language            string     `yaml:"language"`
	CEFRLevel           string     `yaml:"cefr_level"`
	TimeLimitSeconds    *int       `yaml:"time_limit_seconds"`
	PassingScorePercent *int       `yaml:"passing_score_percent"`
	Items               []seedItem `yaml:"items"`
}

type seedFile struct {
	CreatorID uint           `yaml:"creator_id"`
	Exercises []seedExercise `yaml:"exercises"`
}

func toRaw(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (e seedExercise) request() (service.ExerciseCreateRequest, error) {
	req := service.ExerciseCreateRequest{
		Title:               e.Title,
		Type:                model.ExerciseType(e.Type),
		Language:            e.Language,
		CEFRLevel:           e.CEFRLevel,
		TimeLimitSeconds:    e.TimeLimitSeconds,
		PassingScorePercent: e.PassingScorePercent,
	}
	for _, it := range e.Items {
		content, err := toRaw(it.Content)
		if err != nil {
			return req, err
		}
		key, err := toRaw(it.CorrectAnswer)
		if err != nil {
			return req, err
		}
		req.Items = append(req.Items, service.ExerciseItemRequest{
			OrderIndex:    it.OrderIndex,
			Content:       content,
			CorrectAnswer: key,
			Points:        it.Points,
			Hint:          it.Hint,
			Explanation:   it.Explanation,
			MediaRef:      it.MediaRef,
		})
	}
	return req, nil
}

func main() {
	configDir := flag.String("config", "configs", "配置文件所在目录")
	file := flag.String("file", "scripts/seed_exercises.yaml", "练习数据文件")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("无法读取练习数据: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("解析练习数据失败: %v", err)
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	catalog := service.NewExerciseCatalogService(repository.NewExerciseRepository(db), nil, service.NewStorageService(cfg), 0)

	ctx := context.Background()
	for _, e := range seed.Exercises {
		req, err := e.request()
		if err != nil {
			log.Fatalf("练习 %q 数据格式错误: %v", e.Title, err)
		}
		created, err := catalog.CreateExercise(ctx, seed.CreatorID, req)
		if err != nil {
			log.Fatalf("导入练习 %q 失败: %v", e.Title, err)
		}
		log.Printf("已导入练习 #%d %s (%s, %d 题)", created.ID, created.Title, created.Type, len(created.Items))
	}
	log.Println("完成！")
}
