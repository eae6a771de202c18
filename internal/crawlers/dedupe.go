package crawlers

import (
	"github.com/RecoveryAshes/IEAHarvest/internal/models"
)

// Classified 已分类的候选文件
type Classified struct {
	Slot      models.Slot
	Candidate models.Candidate
}

// Dedupe 同一槽位只保留内容最长的候选
// 长度严格更大才替换,等长时保留先出现的
func Dedupe(items []Classified) map[models.Slot]models.Candidate {
	best := make(map[models.Slot]models.Candidate)
	sizes := make(map[models.Slot]int)

	for _, item := range items {
		size := item.Candidate.Size()
		if prev, ok := sizes[item.Slot]; ok && size <= prev {
			continue
		}
		best[item.Slot] = item.Candidate
		sizes[item.Slot] = size
	}

	return best
}

// ToRecords 按固定槽位顺序转换为待落盘记录
func ToRecords(winners map[models.Slot]models.Candidate) []models.ClassifiedRecord {
	records := make([]models.ClassifiedRecord, 0, len(winners))
	for _, slot := range models.AllSlots() {
		c, ok := winners[slot]
		if !ok {
			continue
		}
		records = append(records, models.ClassifiedRecord{
			Slot:       slot,
			Content:    c.RawContent,
			OriginName: c.RawName,
		})
	}
	return records
}
