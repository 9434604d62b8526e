package fault

// Matcher 判断规则是否命中一次调用
//
// 匹配策略：
//   - 携带路径的类别（open、stat）：规则路径与调用路径逐字节相等，
//     不做通配、不处理 "." ".." 和符号链接，调用方必须按被测程序的写法给出路径
//   - 描述符类别：描述符打开时的路径与规则路径逐字节相等。
//     规则路径改变后，旧路径上打开的描述符不再命中
//
// 每个类别只有一条规则，不存在多条规则之间的优先级问题。
// 如果以后允许同一类别多条路径规则，按先注册者优先并在此处说明。
type Matcher struct {
	FDs *FDTable

	// Identify 非 nil 时，描述符命中前确认它仍指向打开时的文件
	Identify IdentifyFunc
}

// Matches 判断注入规则是否命中
func (m Matcher) Matches(r Rule, cc CallContext) bool {
	if !r.Active() || r.Category != cc.Category {
		return false
	}
	return m.matchPath(r.Path, cc)
}

// MatchesDelay 判断延迟规则是否命中
func (m Matcher) MatchesDelay(d Delay, cc CallContext) bool {
	if !d.Active() || d.Category != cc.Category {
		return false
	}
	return m.matchPath(d.Path, cc)
}

func (m Matcher) matchPath(path string, cc CallContext) bool {
	if cc.Category.PathBearing() {
		return path == cc.Path
	}
	if m.FDs == nil {
		return false
	}
	e, ok := m.FDs.Get(cc.Owner, cc.FD)
	if !ok || e.Path != path {
		return false
	}
	return m.current(cc.Owner, cc.FD, e)
}

// current 确认描述符仍指向打开时的文件
// 描述符经未拦截的调用（close_range、exec 时的 close-on-exec）关闭后可能被复用，
// 这时删除旧记录
func (m Matcher) current(owner, fd int, e FDEntry) bool {
	if m.Identify == nil || !e.HasID {
		return true
	}
	id, err := m.Identify(owner, fd)
	if err != nil || id != e.ID {
		m.FDs.Delete(owner, fd)
		return false
	}
	return true
}
