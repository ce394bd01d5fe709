package parser

import "strings"

// categoryRule maps a spending category to the merchant-name keywords
// that imply it. Rules are scanned in order and the first hit wins, so
// the table is a slice rather than a map.
type categoryRule struct {
	category string
	keywords []string
}

var categoryRules = []categoryRule{
	{"餐饮", []string{"餐厅", "饭店", "美食", "咖啡", "奶茶", "火锅", "烧烤", "快餐", "肯德基", "麦当劳", "星巴克"}},
	{"购物", []string{"商城", "超市", "便利店", "京东", "淘宝", "天猫", "拼多多", "亚马逊"}},
	{"交通", []string{"地铁", "公交", "打车", "滴滴", "出租车", "加油", "停车", "高速"}},
	{"娱乐", []string{"电影", "视频", "音乐", "游戏", "网吧", "ktv", "影院"}},
	{"生活服务", []string{"水电", "燃气", "物业", "话费", "宽带", "快递", "洗衣"}},
	{"医疗健康", []string{"医院", "药店", "诊所", "体检"}},
	{"教育", []string{"培训", "学校", "学费", "书本"}},
}

// inferCategory guesses a spending category from the merchant name by
// substring match, case-insensitive where that applies. Best effort: no
// keyword hit means no category.
func inferCategory(merchantName string) string {
	if merchantName == "" {
		return ""
	}
	lower := strings.ToLower(merchantName)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(merchantName, kw) || strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return ""
}
