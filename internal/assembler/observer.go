package assembler

// Observer receives push notifications from an Assembler. Calls are made
// from the goroutine feeding AddData, after the assembler released its
// buffer lock.
type Observer interface {
	MessageCompleted()
	MessageReady(msg string)
	ParseError(err ParseError)
}

// ObserverFuncs adapts optional funcs to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnCompleted  func()
	OnReady      func(msg string)
	OnParseError func(err ParseError)
}

func (f ObserverFuncs) MessageCompleted() {
	if f.OnCompleted != nil {
		f.OnCompleted()
	}
}

func (f ObserverFuncs) MessageReady(msg string) {
	if f.OnReady != nil {
		f.OnReady(msg)
	}
}

func (f ObserverFuncs) ParseError(err ParseError) {
	if f.OnParseError != nil {
		f.OnParseError(err)
	}
}

// MultiObserver fans every notification out in order.
type MultiObserver []Observer

func (m MultiObserver) MessageCompleted() {
	for _, o := range m {
		if o != nil {
			o.MessageCompleted()
		}
	}
}

func (m MultiObserver) MessageReady(msg string) {
	for _, o := range m {
		if o != nil {
			o.MessageReady(msg)
		}
	}
}

func (m MultiObserver) ParseError(err ParseError) {
	for _, o := range m {
		if o != nil {
			o.ParseError(err)
		}
	}
}
