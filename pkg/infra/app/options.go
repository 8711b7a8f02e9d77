package app

import cliflag "k8s.io/component-base/cli/flag"

// CliOptions 命令行选项需要实现的接口。
type CliOptions interface {
	// Flags 返回按分组组织的 FlagSet。
	Flags() cliflag.NamedFlagSets
	// Complete 填充默认值和派生字段。
	Complete() error
	// Validate 校验选项，返回聚合错误。
	Validate() error
}
