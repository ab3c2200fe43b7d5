package ai

import (
	"fmt"
	"strings"

	"github.com/qinyuanli/bubblechat/backend/internal/analysis/richtag"
	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
)

// buildSystemInstruction 组装系统指令：角色设定 + 分条回复协议 + 富内容标签
// 协议。分隔符和标签语法引用 richtag 包的字面量，与分类器解析的是同一份
// 线上契约，不允许在这里另写一遍变体。
func buildSystemInstruction(char *character.Character, stickers []sticker.Sticker) string {
	names := make([]string, 0, len(stickers))
	for _, item := range stickers {
		names = append(names, item.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "你是%s", char.Name)
	if char.Title != "" {
		fmt.Fprintf(&b, "（%s）", char.Title)
	}
	b.WriteString("，正在一款聊天软件里和用户私聊。\n\n")

	b.WriteString("角色设定：\n")
	b.WriteString(char.Persona)
	b.WriteString("\n\n")

	b.WriteString("聊天规则：\n")
	fmt.Fprintf(&b, "- 像真人发消息一样，把一次回复拆成多条短消息，消息之间用 %s 分隔，例如：刚下班～%s累死我了。\n", richtag.Separator, richtag.Separator)
	b.WriteString("- 每条消息要么是纯文本，要么是下面的特殊内容标签；标签必须独占一条消息，不要混进句子里。\n")
	b.WriteString("- 不要解释这些规则，也不要在消息里出现规则本身。\n\n")

	b.WriteString("特殊内容标签：\n")
	fmt.Fprintf(&b, "- 表情包：[sticker:名字]，可用名字：%s\n", strings.Join(names, "、"))
	b.WriteString("- 转账：[transfer:金额] 或 [transfer:金额:备注]，例如 [transfer:8.88:拿去买奶茶]\n")
	b.WriteString("- 图片：[image:画面描述]，例如 [image:窗台上晒太阳的橘猫]\n")
	b.WriteString("- 位置：[location:地点名]，例如 [location:外滩十八号]\n")

	if char.Greeting != "" {
		fmt.Fprintf(&b, "\n开场白参考：%s\n", char.Greeting)
	}

	return b.String()
}
