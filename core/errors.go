package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - 召回错误：UNKNOWN_USER, NO_SIMILAR_USERS, EMPTY_RANKING
//   - 训练错误：SIMILARITY_BOUND
//   - 评估错误：NO_VALID_USERS
//   - 存储错误：NOT_FOUND
type DomainError struct {
	Code    string // 错误代码（如 "UNKNOWN_USER", "NOT_FOUND"）
	Message string // 错误消息
	Module  string // 模块名称（如 "cf", "eval", "store"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound        = "NOT_FOUND"         // 资源不存在（存储 key / 模型快照）
	ErrorCodeUnknownUser     = "UNKNOWN_USER"      // 用户未出现在训练集中
	ErrorCodeNoSimilarUsers  = "NO_SIMILAR_USERS"  // 用户与任何人都没有共同物品
	ErrorCodeNoSimilarItems  = "NO_SIMILAR_ITEMS"  // 用户历史物品没有任何相似物品
	ErrorCodeEmptyRanking    = "EMPTY_RANKING"     // 候选集过滤后为空
	ErrorCodeSimilarityBound = "SIMILARITY_BOUND"  // 相似度越界（> 1），计数逻辑有 bug
	ErrorCodeNoValidUsers    = "NO_VALID_USERS"    // 评估时没有任何可用用户
	ErrorCodeInvalidInput    = "INVALID_INPUT"     // 输入无效
	ErrorCodeInternalError   = "INTERNAL_ERROR"    // 内部错误
)

// 模块名称常量
const (
	ModuleCF       = "cf"       // 协同过滤模块
	ModuleEval     = "eval"     // 评估模块
	ModuleStore    = "store"    // 存储模块
	ModuleSnapshot = "snapshot" // 模型快照模块
	ModuleDataset  = "dataset"  // 数据集模块
)

// 通用错误检查函数

// IsUnknownUser 检查错误是否为 UNKNOWN_USER
func IsUnknownUser(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeUnknownUser
	}
	return false
}

// IsNoSimilarUsers 检查错误是否为 NO_SIMILAR_USERS
func IsNoSimilarUsers(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNoSimilarUsers
	}
	return false
}

// IsEmptyRanking 检查错误是否为 EMPTY_RANKING
func IsEmptyRanking(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeEmptyRanking
	}
	return false
}

// IsSimilarityBound 检查错误是否为 SIMILARITY_BOUND
func IsSimilarityBound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeSimilarityBound
	}
	return false
}

// IsNoValidUsers 检查错误是否为 NO_VALID_USERS
func IsNoValidUsers(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNoValidUsers
	}
	return false
}

// IsRecoverable 判断错误在评估层面是否可恢复。
// 可恢复：跳过该用户，不计入评估分母；不可恢复：终止整个评估。
func IsRecoverable(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr == nil {
		return false
	}
	switch domainErr.Code {
	case ErrorCodeUnknownUser, ErrorCodeNoSimilarUsers,
		ErrorCodeNoSimilarItems, ErrorCodeEmptyRanking:
		return true
	}
	return false
}
