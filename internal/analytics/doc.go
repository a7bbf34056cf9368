// Package analytics 在事务与偏好快照上计算网络指标。
//
// 所有函数都是纯函数：不修改输入、不保留状态，相同输入得到相同输出。
// 除零与空输入均返回约定的中性值，不返回错误。
// 耗时单位统一为秒。
package analytics
