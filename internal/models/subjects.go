package models

import (
	"fmt"
	"regexp"
)

// Subject 采集对象(国家slug,对应IEA页面路径)
type Subject = string

// slugPattern 合法slug: 小写字母数字,以连字符分隔
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// defaultSubjects IEA国家列表(顺序即采集顺序,断点续采依赖此顺序)
var defaultSubjects = []Subject{
	"albania", "algeria", "andorra", "angola", "argentina", "armenia", "australia",
	"austria", "azerbaijan", "bahrain", "bangladesh", "belarus", "belgium", "benin",
	"bermuda", "bolivia", "bosnia-and-herzegovina", "botswana", "brazil",
	"brunei-darussalam", "bulgaria", "burkina-faso", "cabo-verde", "cambodia",
	"cameroon", "canada", "central-african-republic", "chad", "chile", "china",
	"chinese-taipei", "colombia", "comoros", "congo", "costa-rica", "cote-divoire",
	"croatia", "cuba", "curacao", "cyprus", "czechia", "democratic-republic-of-the-congo",
	"denmark", "djibouti", "dominican-republic", "ecuador", "egypt", "el-salvador",
	"equatorial-guinea", "eritrea", "estonia", "eswatini", "ethiopia", "finland",
	"france", "gabon", "gambia", "georgia", "germany", "ghana", "gibraltar",
	"greece", "guatemala", "guinea", "guinea-bissau", "haiti", "honduras", "hong-kong",
	"hungary", "iceland", "india", "indonesia", "iran", "iraq", "ireland", "israel",
	"italy", "jamaica", "japan", "jordan", "kazakhstan", "kenya", "korea", "kosovo",
	"kuwait", "kyrgyzstan", "laos", "latvia", "lebanon", "lesotho", "liberia", "libya",
	"liechtenstein", "lithuania", "luxembourg", "madagascar", "malawi", "malaysia",
	"mali", "malta", "mauritania", "mauritius", "mexico", "moldova", "monaco", "mongolia",
	"montenegro", "morocco", "mozambique", "myanmar", "namibia", "nepal", "new-zealand",
	"nicaragua", "niger", "nigeria", "north-macedonia", "norway", "oman", "pakistan",
	"panama", "paraguay", "peru", "philippines", "poland", "portugal", "qatar",
	"romania", "russia", "rwanda", "san-marino", "sao-tome-and-principe", "saudi-arabia",
	"senegal", "serbia", "seychelles", "sierra-leone", "singapore", "slovak-republic",
	"slovenia", "somalia", "south-africa", "south-sudan", "spain", "sri-lanka", "sudan",
	"suriname", "sweden", "switzerland", "syria", "tajikistan", "tanzania", "thailand",
	"the-netherlands", "togo", "trinidad-and-tobago", "tunisia", "turkiye", "turkmenistan",
	"uganda", "ukraine", "united-arab-emirates", "united-kingdom", "united-states",
	"uruguay", "uzbekistan", "venezuela", "vietnam", "yemen", "zambia", "zimbabwe",
}

// DefaultSubjects 返回默认国家列表的副本
func DefaultSubjects() []Subject {
	out := make([]Subject, len(defaultSubjects))
	copy(out, defaultSubjects)
	return out
}

// ValidateSubject 验证slug格式
func ValidateSubject(s Subject) error {
	if s == "" {
		return fmt.Errorf("采集对象不能为空")
	}
	if !slugPattern.MatchString(s) {
		return fmt.Errorf("无效的采集对象slug: %q (仅允许小写字母、数字和连字符)", s)
	}
	return nil
}

// ValidateSubjects 验证列表: 每项合法且无重复
func ValidateSubjects(subjects []Subject) error {
	if len(subjects) == 0 {
		return fmt.Errorf("采集对象列表为空")
	}
	seen := make(map[Subject]int, len(subjects))
	for i, s := range subjects {
		if err := ValidateSubject(s); err != nil {
			return fmt.Errorf("第%d项: %w", i+1, err)
		}
		if prev, ok := seen[s]; ok {
			return fmt.Errorf("采集对象重复: %s (第%d项与第%d项)", s, prev+1, i+1)
		}
		seen[s] = i
	}
	return nil
}
