package eval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/parser"
)

func evalSource(t *testing.T, source string, opts ...Option) *ast.Document {
	t.Helper()
	doc, err := parser.Parse(source, "test.pdoc")
	require.NoError(t, err)
	all := append([]Option{WithFilename("test.pdoc"), WithSource(source)}, opts...)
	result, err := Evaluate(context.Background(), doc, all...)
	require.NoError(t, err)
	return result
}

func evalError(t *testing.T, source string, opts ...Option) error {
	t.Helper()
	doc, err := parser.Parse(source, "test.pdoc")
	require.NoError(t, err)
	all := append([]Option{WithFilename("test.pdoc"), WithSource(source)}, opts...)
	_, err = Evaluate(context.Background(), doc, all...)
	require.Error(t, err)
	return err
}

func child(t *testing.T, doc *ast.Document, i int) *ast.MacroCall {
	t.Helper()
	require.Greater(t, len(doc.Children), i, "document has %d children", len(doc.Children))
	call, ok := doc.Children[i].(*ast.MacroCall)
	require.True(t, ok, "child %d is %T", i, doc.Children[i])
	return call
}

// bodyText joins the literal text of a call's body children.
func bodyText(t *testing.T, call *ast.MacroCall) string {
	t.Helper()
	body, ok := call.Body.(*ast.Body)
	require.True(t, ok, "body of #%s is %T", call.Name, call.Body)
	var b strings.Builder
	for _, c := range body.Children {
		switch n := c.(type) {
		case *ast.Text:
			b.WriteString(n.Value)
		case *ast.Escape:
			b.WriteString(n.Value)
		}
	}
	return b.String()
}

func bodyCalls(t *testing.T, call *ast.MacroCall) []*ast.MacroCall {
	t.Helper()
	body, ok := call.Body.(*ast.Body)
	require.True(t, ok, "body of #%s is %T", call.Name, call.Body)
	var calls []*ast.MacroCall
	for _, c := range body.Children {
		if mc, ok := c.(*ast.MacroCall); ok {
			calls = append(calls, mc)
		}
	}
	return calls
}

func argText(t *testing.T, call *ast.MacroCall, name string) string {
	t.Helper()
	v := call.Arg(name)
	require.NotNil(t, v, "#%s has no %s argument", call.Name, name)
	text, ok := v.(*ast.Text)
	require.True(t, ok, "%s argument is %T", name, v)
	return text.Value
}

func TestParagraphWrapping(t *testing.T) {
	t.Run("paragraph becomes p", func(t *testing.T) {
		doc := evalSource(t, "Hello world\n")
		p := child(t, doc, 0)
		assert.Equal(t, "p", p.Name)
		assert.Equal(t, "Hello world", bodyText(t, p))
	})

	t.Run("paragraph with inline macro", func(t *testing.T) {
		doc := evalSource(t, `Click [#**"here"] now`)
		p := child(t, doc, 0)
		body := p.Body.(*ast.Body)
		require.Len(t, body.Children, 3)
		bold := bodyCalls(t, p)
		require.Len(t, bold, 1)
		assert.Equal(t, "**", bold[0].Name)
	})

	t.Run("two paragraphs", func(t *testing.T) {
		doc := evalSource(t, "First\n\nSecond\n")
		require.Len(t, doc.Children, 2)
		assert.Equal(t, "First", bodyText(t, child(t, doc, 0)))
		assert.Equal(t, "Second", bodyText(t, child(t, doc, 1)))
	})
}

func TestDefinitionCollection(t *testing.T) {
	t.Run("set collected and removed", func(t *testing.T) {
		doc := evalSource(t, "[#set name=version : 1.0]\n#title: Hello\n")
		require.Len(t, doc.Children, 1)
		assert.Equal(t, "title", child(t, doc, 0).Name)
	})

	t.Run("set visible to ifset", func(t *testing.T) {
		doc := evalSource(t, "[#set name=version : 1.0]\n[#ifset name=version : [#p : defined]]\n")
		require.Len(t, doc.Children, 1)
		assert.Equal(t, "defined", bodyText(t, child(t, doc, 0)))
	})

	t.Run("duplicate definition", func(t *testing.T) {
		err := evalError(t, "[#set name=x : 1]\n[#set name=x : 2]\n")
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, DuplicateDefinition, e.Kind)
		assert.Equal(t, "duplicate definition: x", e.Message)
	})

	t.Run("definition after use", func(t *testing.T) {
		doc := evalSource(t, "#p: #project\n\n[#set name=project : PicoDoc]\n")
		assert.Equal(t, "PicoDoc", bodyText(t, child(t, doc, 0)))
	})
}

func TestUserMacros(t *testing.T) {
	t.Run("simple variable", func(t *testing.T) {
		doc := evalSource(t, "[#set name=version : 1.0]\n\nv=#version\n")
		assert.Equal(t, "v=1.0", bodyText(t, child(t, doc, 0)))
	})

	t.Run("trailing dot", func(t *testing.T) {
		doc := evalSource(t, "[#set name=version : 1.0]\n\nv=#version.\n")
		assert.Equal(t, "v=1.0.", bodyText(t, child(t, doc, 0)))
	})

	t.Run("required args and body", func(t *testing.T) {
		source := "[#set name=greeting target=? body=? : Dear #target, #body]\n\n" +
			"[#greeting target=World : hello]\n"
		doc := evalSource(t, source)
		assert.Equal(t, "Dear World, hello", bodyText(t, child(t, doc, 0)))
	})

	t.Run("defaults", func(t *testing.T) {
		source := "[#set name=box style=default body=? : (#style) #body]\n\n" +
			"[#box : content]\n\n" +
			"[#box style=fancy : other]\n"
		doc := evalSource(t, source)
		assert.Equal(t, "(default) content", bodyText(t, child(t, doc, 0)))
		assert.Equal(t, "(fancy) other", bodyText(t, child(t, doc, 1)))
	})

	t.Run("body param binding", func(t *testing.T) {
		source := "[#set name=wrap body=? : <#body>]\n\n[#wrap : inside]\n"
		doc := evalSource(t, source)
		assert.Equal(t, "<inside>", bodyText(t, child(t, doc, 0)))
	})

	t.Run("string literal definition body", func(t *testing.T) {
		source := "[#set name=motto : \"Write less, mean more.\"]\n\n#motto\n"
		doc := evalSource(t, source)
		assert.Equal(t, "Write less, mean more.", bodyText(t, child(t, doc, 0)))
	})

	t.Run("macro ref as arg value", func(t *testing.T) {
		source := "[#set name=site-url : https://example.com]\n" +
			"#p: Visit [#url link=#site-url text=\"our site\"] today.\n"
		doc := evalSource(t, source)
		p := child(t, doc, 0)
		calls := bodyCalls(t, p)
		require.Len(t, calls, 1)
		assert.Equal(t, "url", calls[0].Name)
		assert.Equal(t, "https://example.com", argText(t, calls[0], "link"))
		assert.Equal(t, "our site", argText(t, calls[0], "text"))
	})

	t.Run("code section in string body", func(t *testing.T) {
		source := "[#set name=version : 1.0]\n" +
			"#p: \"Hello, \\[#version]!\"\n"
		doc := evalSource(t, source)
		p := child(t, doc, 0)
		s, ok := p.Body.(*ast.InterpString)
		require.True(t, ok, "body is %T", p.Body)
		var section *ast.CodeSection
		for _, part := range s.Parts {
			if cs, ok := part.(*ast.CodeSection); ok {
				section = cs
			}
		}
		require.NotNil(t, section)
		require.Len(t, section.Children, 1)
		text, ok := section.Children[0].(*ast.Text)
		require.True(t, ok)
		assert.Equal(t, "1.0", text.Value)
	})

	t.Run("nested user macro", func(t *testing.T) {
		source := "[#set name=inner x=? : (#x)]\n" +
			"[#set name=outer y=? : [#inner x=#y]]\n\n" +
			"[#outer y=val]\n"
		doc := evalSource(t, source)
		assert.Equal(t, "(val)", bodyText(t, child(t, doc, 0)))
	})

	t.Run("scope shadows definition inside call only", func(t *testing.T) {
		source := "[#set name=x : global]\n" +
			"[#set name=show x=? : #x]\n\n" +
			"[#show x=local] #x\n"
		doc := evalSource(t, source)
		assert.Equal(t, "local global", bodyText(t, child(t, doc, 0)))
	})

	t.Run("chained resolution", func(t *testing.T) {
		source := "[#set name=alpha : hello]\n" +
			"[#set name=beta : #alpha]\n\n#beta\n"
		doc := evalSource(t, source)
		assert.Equal(t, "hello", bodyText(t, child(t, doc, 0)))
	})
}

func TestEnvironment(t *testing.T) {
	draft := WithEnv(map[string]string{"mode": "draft"})

	t.Run("preseeded value", func(t *testing.T) {
		doc := evalSource(t, "mode=#env.mode\n", draft)
		assert.Equal(t, "mode=draft", bodyText(t, child(t, doc, 0)))
	})

	t.Run("set binds env name", func(t *testing.T) {
		doc := evalSource(t, "[#set name=env.mode : draft]\n\n#env.mode\n")
		assert.Equal(t, "draft", bodyText(t, child(t, doc, 0)))
	})

	t.Run("set overrides preseeded", func(t *testing.T) {
		doc := evalSource(t, "[#set name=env.mode : final]\n\n#env.mode\n", draft)
		assert.Equal(t, "final", bodyText(t, child(t, doc, 0)))
	})

	t.Run("duplicate env set", func(t *testing.T) {
		err := evalError(t, "[#set name=env.mode : a]\n[#set name=env.mode : b]\n")
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, DuplicateDefinition, e.Kind)
		assert.Equal(t, "duplicate definition: env.mode", e.Message)
	})

	t.Run("ifset sees preseeded env", func(t *testing.T) {
		doc := evalSource(t, "[#ifset name=env.mode : [#p : yes]]\n", draft)
		require.Len(t, doc.Children, 1)
		assert.Equal(t, "yes", bodyText(t, child(t, doc, 0)))
	})

	t.Run("ifset unset env", func(t *testing.T) {
		doc := evalSource(t, "[#ifset name=env.missing : [#p : yes]]\n")
		assert.Empty(t, doc.Children)
	})

	t.Run("ifeq against env", func(t *testing.T) {
		doc := evalSource(t, "[#ifeq lhs=#env.mode rhs=draft : [#p : match]]\n", draft)
		require.Len(t, doc.Children, 1)
		assert.Equal(t, "match", bodyText(t, child(t, doc, 0)))
	})

	t.Run("visible inside user macro", func(t *testing.T) {
		doc := evalSource(t, "[#set name=show-mode : #env.mode]\n\n#show-mode\n", draft)
		assert.Equal(t, "draft", bodyText(t, child(t, doc, 0)))
	})

	t.Run("parameter cannot shadow env", func(t *testing.T) {
		source := "[#set name=bad env.mode=? : #env.mode]\n\n[#bad env.mode=hacked]\n"
		err := evalError(t, source, WithEnv(map[string]string{"mode": "safe"}))
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, BadDefinition, e.Kind)
		assert.Contains(t, e.Message, "cannot shadow environment variable")
	})

	t.Run("undefined env is empty", func(t *testing.T) {
		doc := evalSource(t, "x#env.missing\\y\n")
		assert.Equal(t, "xy", bodyText(t, child(t, doc, 0)))
	})

	t.Run("frozen after evaluation starts", func(t *testing.T) {
		env := NewEnvironment()
		require.NoError(t, env.Set("mode", "draft"))
		env.Freeze()
		err := env.Set("other", "x")
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, FrozenEnvironment, e.Kind)
		v, ok := env.Get("mode")
		assert.True(t, ok)
		assert.Equal(t, "draft", v)
	})
}

func TestConditionals(t *testing.T) {
	cases := []struct {
		name   string
		source string
		kept   bool
	}{
		{"ifeq true", "[#ifeq lhs=a rhs=a : [#p : match]]\n", true},
		{"ifeq false", "[#ifeq lhs=a rhs=b : [#p : match]]\n", false},
		{"ifne true", "[#ifne lhs=a rhs=b : [#p : kept]]\n", true},
		{"ifne false", "[#ifne lhs=a rhs=a : [#p : kept]]\n", false},
		{"ifset defined", "[#set name=x : val]\n[#ifset name=x : [#p : kept]]\n", true},
		{"ifset undefined", "[#ifset name=x : [#p : kept]]\n", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := evalSource(t, tc.source)
			if tc.kept {
				assert.Len(t, doc.Children, 1)
			} else {
				assert.Empty(t, doc.Children)
			}
		})
	}

	t.Run("macro expands inside conditional body", func(t *testing.T) {
		source := "[#set name=mode : draft]\n" +
			"[#set name=label : DRAFT]\n" +
			"[#ifeq lhs=#mode rhs=draft : [#p : #label]]\n"
		doc := evalSource(t, source)
		require.Len(t, doc.Children, 1)
		assert.Equal(t, "DRAFT", bodyText(t, child(t, doc, 0)))
	})
}

func TestComments(t *testing.T) {
	t.Run("removed at top level", func(t *testing.T) {
		doc := evalSource(t, "[#comment : hidden]\n")
		assert.Empty(t, doc.Children)
	})

	t.Run("removed from body", func(t *testing.T) {
		source := "[#ul :\n[#comment : hidden]\n[#* : visible]\n]\n"
		doc := evalSource(t, source)
		ul := child(t, doc, 0)
		calls := bodyCalls(t, ul)
		require.Len(t, calls, 1)
		assert.Equal(t, "*", calls[0].Name)
	})
}

func TestDeclaredDepth(t *testing.T) {
	t.Run("zero splices body as final", func(t *testing.T) {
		source := "[#set name=frozen depth=0 : #never-defined]\n\n#p: #frozen\n"
		doc := evalSource(t, source)
		p := child(t, doc, 0)
		calls := bodyCalls(t, p)
		require.Len(t, calls, 1)
		assert.Equal(t, "never-defined", calls[0].Name)
	})

	t.Run("limit bounds self recursion", func(t *testing.T) {
		err := evalError(t, "[#set name=r depth=2 : x#r]\n\n#p: #r\n")
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, DepthExceeded, e.Kind)
		assert.Equal(t, []string{"r", "r", "r"}, e.CallStack)
	})
}

func TestAliases(t *testing.T) {
	t.Run("names survive expansion as written", func(t *testing.T) {
		doc := evalSource(t, "#-: Heading\n\n[#ol : [#li : item]]\n")
		assert.Equal(t, "-", child(t, doc, 0).Name)
		items := bodyCalls(t, child(t, doc, 1))
		require.Len(t, items, 1)
		assert.Equal(t, "li", items[0].Name)
	})
}

func TestEvaluateCanceled(t *testing.T) {
	doc, err := parser.Parse("#p: hi\n", "test.pdoc")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Evaluate(ctx, doc)
	assert.ErrorIs(t, err, context.Canceled)
}
