package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
)

// ReadSubjectsFromFile 从文件中读取采集对象列表
// 每行一个slug,忽略空行和#注释; 无效或重复的行跳过并告警
func ReadSubjectsFromFile(filepath string) ([]models.Subject, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开对象列表文件失败: %w", err)
	}
	defer file.Close()

	subjects := make([]models.Subject, 0)
	seen := make(map[models.Subject]bool)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := models.ValidateSubject(line); err != nil {
			Warnf("跳过无效对象 (行 %d): %s - %v", lineNum, line, err)
			continue
		}
		if seen[line] {
			Warnf("跳过重复对象 (行 %d): %s", lineNum, line)
			continue
		}

		seen[line] = true
		subjects = append(subjects, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取对象列表文件失败: %w", err)
	}

	if len(subjects) == 0 {
		return nil, fmt.Errorf("对象列表文件中没有有效的对象")
	}

	Infof("从文件加载了 %d 个采集对象", len(subjects))
	return subjects, nil
}

// ParseSubjectList 解析逗号分隔的对象列表
func ParseSubjectList(list string) ([]models.Subject, error) {
	subjects := make([]models.Subject, 0)
	for _, part := range strings.Split(list, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		subjects = append(subjects, s)
	}
	if err := models.ValidateSubjects(subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}
