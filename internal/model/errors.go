package model

import (
	"errors"
	"fmt"
)

var (
	// ErrCredential 缺少或无效的访问凭证，整个请求失败
	ErrCredential = errors.New("invalid or missing credential")
	// ErrFetch 邮件服务不可用，整个批次失败
	ErrFetch = errors.New("mail fetch failed")
	// ErrExtraction 单封邮件的字段抽取失败
	ErrExtraction = errors.New("extraction service error")
	// ErrParse 抽取结果字段数量不足
	ErrParse = errors.New("parse error")
	// ErrPersistence 写入失败
	ErrPersistence = errors.New("persistence error")
	// ErrSinkUnavailable 存储整体不可用（连接丢失），中止剩余写入
	ErrSinkUnavailable = fmt.Errorf("%w: sink unavailable", ErrPersistence)
	// ErrUnknownOwner 用户不存在
	ErrUnknownOwner = errors.New("unknown owner")
	// ErrNotFound 查询结果为空
	ErrNotFound = errors.New("not found")
)
