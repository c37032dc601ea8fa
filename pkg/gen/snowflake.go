package gen

import (
	"ecocommunity-gamification/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("snowflake", fx.Provide(NewNode))

// NewNode builds the id generator for SNOWFLAKE.NODE. Every replica needs
// its own node number.
func NewNode(cfg *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		zap.L().Error("failed to init snowflake node", zap.Int64("node", cfg.Snowflake.Node), zap.Error(err))
		return nil, err
	}
	return node, nil
}
