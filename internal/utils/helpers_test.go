package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadSubjectsFromFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name:    "正常列表",
			content: "canada\nfrance\n",
			want:    []string{"canada", "france"},
		},
		{
			name:    "注释和空行",
			content: "# 北美\ncanada\n\n  mexico  \n# 结束\n",
			want:    []string{"canada", "mexico"},
		},
		{
			name:    "跳过无效和重复",
			content: "canada\nNew Zealand\ncanada\nperu\n",
			want:    []string{"canada", "peru"},
		},
		{
			name:    "没有有效对象",
			content: "# only comments\n\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "subjects.txt")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			got, err := ReadSubjectsFromFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadSubjectsFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ReadSubjectsFromFile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadSubjectsFromFile_Missing(t *testing.T) {
	if _, err := ReadSubjectsFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("文件不存在应返回错误")
	}
}

func TestParseSubjectList(t *testing.T) {
	got, err := ParseSubjectList(" canada, france ,,japan")
	if err != nil {
		t.Fatalf("ParseSubjectList() error = %v", err)
	}
	if strings.Join(got, ",") != "canada,france,japan" {
		t.Errorf("ParseSubjectList() = %v", got)
	}

	if _, err := ParseSubjectList("canada,canada"); err == nil {
		t.Error("重复对象应返回错误")
	}
	if _, err := ParseSubjectList(""); err == nil {
		t.Error("空列表应返回错误")
	}
}
