package sequence

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Generator ID生成器，按实例节点号注入，测试可控
type Generator struct {
	node *snowflake.Node
}

// New 创建ID生成器
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}
	return &Generator{node: node}, nil
}

// NextID 生成全局唯一ID
func (g *Generator) NextID() string {
	return g.node.Generate().String()
}

// NextBatchNo 生成批次号：ST + 日期 + 序列
func (g *Generator) NextBatchNo(t time.Time) string {
	return fmt.Sprintf("ST%s%s", t.Format("20060102"), g.node.Generate().Base36())
}
