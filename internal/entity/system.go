package entity

// DBInfo 数据库方言与连接池状态
type DBInfo struct {
	Dialect         string `json:"dialect"`
	MaxOpen         int    `json:"max_open"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	UserCount       int64  `json:"user_count"`
}
