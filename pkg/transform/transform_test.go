package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/goretrolambda/pkg/classfile"
	"github.com/daimatz/goretrolambda/pkg/classfile/classfiletest"
	"github.com/daimatz/goretrolambda/pkg/methodref"
)

func parse(t *testing.T, b *classfiletest.Builder) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.ParseBytes(b.Build(t))
	require.NoError(t, err)
	return cf
}

func encode(t *testing.T, cf *classfile.ClassFile) []byte {
	t.Helper()
	data, err := cf.Bytes()
	require.NoError(t, err)
	return data
}

func shape() *classfiletest.Builder {
	return classfiletest.NewInterface("Shape").
		Method(classfile.AccPublic|classfile.AccAbstract, "area", "()D").
		Method(classfile.AccPublic, "describe", "()Ljava/lang/String;").
		Method(classfile.AccPublic|classfile.AccStatic, "create", "()LShape;")
}

func TestRemoveDefaultMethodBodies_Shape(t *testing.T) {
	ctx := NewContext(nil)
	in := parse(t, shape())
	before := encode(t, in)

	out, err := RemoveDefaultMethodBodies{}.Apply(ctx, in)
	require.NoError(t, err)

	require.Len(t, out.Methods, 2)
	area := out.FindMethod("area", "()D")
	require.NotNil(t, area)
	assert.True(t, area.IsAbstract())
	assert.False(t, area.HasBody())

	describe := out.FindMethod("describe", "()Ljava/lang/String;")
	require.NotNil(t, describe)
	assert.True(t, describe.IsAbstract())
	assert.False(t, describe.HasBody())
	assert.Nil(t, describe.Code)

	assert.Nil(t, out.FindMethodByName("create"))

	// 入力は変更されないこと
	assert.Equal(t, before, encode(t, in))

	// エンコードして読み直しても同じ結果になること
	reparsed, err := classfile.ParseBytes(encode(t, out))
	require.NoError(t, err)
	assert.Len(t, reparsed.Methods, 2)
}

func TestRemoveDefaultMethodBodies_Idempotent(t *testing.T) {
	ctx := NewContext(nil)
	once, err := RemoveDefaultMethodBodies{}.Apply(ctx, parse(t, shape()))
	require.NoError(t, err)
	twice, err := RemoveDefaultMethodBodies{}.Apply(ctx, once)
	require.NoError(t, err)
	assert.Equal(t, encode(t, once), encode(t, twice))
}

func TestRemoveDefaultMethodBodies_NonInterface(t *testing.T) {
	ctx := NewContext(nil)
	in := parse(t, classfiletest.New("Circle", "java/lang/Object", classfile.AccPublic|classfile.AccSuper).
		Implements("Shape").
		Method(classfile.AccPublic, "area", "()D").
		Method(classfile.AccPublic|classfile.AccStatic, "unit", "()LCircle;"))
	before := encode(t, in)

	out, err := RemoveDefaultMethodBodies{}.Apply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, before, encode(t, out))
}

func TestRemoveDefaultMethodBodies_DropsClassInitializer(t *testing.T) {
	ctx := NewContext(nil)
	in := parse(t, classfiletest.NewInterface("Consts").
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "NAMES", "Ljava/util/List;").
		Method(classfile.AccPublic|classfile.AccAbstract, "a", "()V").
		Method(classfile.AccStatic, "<clinit>", "()V"))

	out, err := RemoveDefaultMethodBodies{}.Apply(ctx, in)
	require.NoError(t, err)
	require.Len(t, out.Methods, 1)
	assert.Equal(t, "a", out.Methods[0].Name)
	assert.Nil(t, out.FindMethodByName("<clinit>"))
	// 入力側には残っていること
	assert.NotNil(t, in.FindMethodByName("<clinit>"))

	// <clinit> だけのインターフェースも書き換え対象
	only := parse(t, classfiletest.NewInterface("OnlyInit").Method(classfile.AccStatic, "<clinit>", "()V"))
	out, err = RemoveDefaultMethodBodies{}.Apply(ctx, only)
	require.NoError(t, err)
	assert.Empty(t, out.Methods)
}

func TestRemoveDefaultMethodBodies_Property(t *testing.T) {
	ctx := NewContext(nil)
	inputs := []*classfiletest.Builder{
		shape(),
		classfiletest.NewInterface("Empty"),
		classfiletest.NewInterface("OnlyAbstract").Method(classfile.AccPublic|classfile.AccAbstract, "a", "()V"),
		classfiletest.NewInterface("Mixed").
			Method(classfile.AccPublic, "d1", "(I)V").
			Method(classfile.AccPublic|classfile.AccStatic, "s1", "(J)J").
			Method(classfile.AccPrivate|classfile.AccSynthetic, "lambda$d1$0", "()V").
			Method(classfile.AccPrivate|classfile.AccStatic|classfile.AccSynthetic, "lambda$s1$1", "()V").
			Method(classfile.AccStatic, "<clinit>", "()V"),
		classfiletest.NewInterface("Consts").
			Method(classfile.AccPublic|classfile.AccAbstract, "a", "()V").
			Method(classfile.AccStatic, "<clinit>", "()V"),
	}
	for _, b := range inputs {
		in := parse(t, b)
		out, err := RemoveDefaultMethodBodies{}.Apply(ctx, in)
		require.NoError(t, err)
		for _, m := range out.Methods {
			assert.True(t, m.IsAbstract(), "%s%s should be abstract", m.Name, m.Descriptor)
			assert.False(t, m.HasBody(), "%s%s should have no body", m.Name, m.Descriptor)
			assert.False(t, m.IsStatic(), "%s%s should have been removed", m.Name, m.Descriptor)
		}
		for _, m := range in.Methods {
			if !m.IsStatic() {
				assert.NotNil(t, out.FindMethod(m.Name, m.Descriptor), "%s%s missing", m.Name, m.Descriptor)
			}
		}
	}
}

func nested(owner, name, desc string) *classfiletest.Builder {
	return classfiletest.New("Shape$1", "java/lang/Object", classfile.AccSuper).
		Implements("java/lang/Runnable").
		EnclosingMethod(owner, name, desc)
}

func TestUpdateRenamedEnclosingMethods(t *testing.T) {
	t.Run("renamed", func(t *testing.T) {
		resolver := methodref.NewResolver()
		renamed := methodref.Ref{Owner: "Shape$", Name: "lambda$describe$0", Desc: "(LShape;)V"}
		resolver.Record(methodref.Ref{Owner: "Shape", Name: "lambda$describe$0", Desc: "()V"}, renamed)
		ctx := NewContext(resolver)

		in := parse(t, nested("Shape", "lambda$describe$0", "()V"))
		before := encode(t, in)
		out, err := UpdateRenamedEnclosingMethods{}.Apply(ctx, in)
		require.NoError(t, err)

		reparsed, err := classfile.ParseBytes(encode(t, out))
		require.NoError(t, err)
		em, err := reparsed.EnclosingMethod()
		require.NoError(t, err)
		require.NotNil(t, em)
		assert.Equal(t, renamed, methodref.Ref{Owner: em.Owner, Name: em.Name, Desc: em.Descriptor})
		assert.Equal(t, before, encode(t, in))
	})

	t.Run("not renamed", func(t *testing.T) {
		ctx := NewContext(nil)
		in := parse(t, nested("Shape", "run", "()V"))
		out, err := UpdateRenamedEnclosingMethods{}.Apply(ctx, in)
		require.NoError(t, err)
		em, err := out.EnclosingMethod()
		require.NoError(t, err)
		assert.Equal(t, &classfile.EnclosingMethod{Owner: "Shape", Name: "run", Descriptor: "()V"}, em)
	})

	t.Run("no method", func(t *testing.T) {
		resolver := methodref.NewResolver()
		resolver.Record(methodref.Ref{Owner: "Shape"}, methodref.Ref{Owner: "Other", Name: "x", Desc: "()V"})
		ctx := NewContext(resolver)
		in := parse(t, nested("Shape", "", ""))
		out, err := UpdateRenamedEnclosingMethods{}.Apply(ctx, in)
		require.NoError(t, err)
		assert.Same(t, in, out)
	})

	t.Run("no attribute", func(t *testing.T) {
		ctx := NewContext(nil)
		in := parse(t, shape())
		out, err := UpdateRenamedEnclosingMethods{}.Apply(ctx, in)
		require.NoError(t, err)
		assert.Same(t, in, out)
	})
}

func TestLowerVersion(t *testing.T) {
	ctx := NewContext(nil)

	in := parse(t, shape().Version(52))
	out, err := LowerVersion{Target: Java7}.Apply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, uint16(Java7), out.MajorVersion)
	assert.Equal(t, uint16(52), in.MajorVersion)

	old := parse(t, shape().Version(Java6))
	out, err = LowerVersion{Target: Java7}.Apply(ctx, old)
	require.NoError(t, err)
	assert.Same(t, old, out)

	_, err = LowerVersion{Target: 12}.Apply(ctx, in)
	assert.Error(t, err)
}

func TestRecordInterfaceRelocations(t *testing.T) {
	resolver := methodref.NewResolver()
	ctx := NewContext(resolver)
	in := parse(t, shape().
		Method(classfile.AccPrivate|classfile.AccSynthetic, "lambda$describe$0", "(I)V").
		Method(classfile.AccStatic, "<clinit>", "()V").
		LambdaBootstrap(classfile.RefInvokeSpecial, "Shape", "lambda$describe$0", "(I)V", true))

	require.NoError(t, Analyze(ctx, in, RecordInterfaceRelocations{}))

	assert.Equal(t,
		methodref.Ref{Owner: "Shape$", Name: "create", Desc: "()LShape;"},
		resolver.Resolve(methodref.Ref{Owner: "Shape", Name: "create", Desc: "()LShape;"}))
	assert.Equal(t,
		methodref.Ref{Owner: "Shape$", Name: "lambda$describe$0", Desc: "(LShape;I)V"},
		resolver.Resolve(methodref.Ref{Owner: "Shape", Name: "lambda$describe$0", Desc: "(I)V"}))
	// default メソッド自体と <clinit> は記録されない
	assert.Equal(t, 2, resolver.Len())

	classResolver := methodref.NewResolver()
	cls := parse(t, classfiletest.New("Circle", "java/lang/Object", 0).Method(classfile.AccStatic, "lambda$x$0", "()V"))
	require.NoError(t, Analyze(NewContext(classResolver), cls, RecordInterfaceRelocations{}))
	assert.Equal(t, 0, classResolver.Len())
}

type failingPass struct{}

func (failingPass) Name() string { return "failing" }
func (failingPass) Apply(*Context, *classfile.ClassFile) (*classfile.ClassFile, error) {
	return nil, errors.New("boom")
}

func TestChainRun(t *testing.T) {
	t.Run("default chain", func(t *testing.T) {
		resolver := methodref.NewResolver()
		renamed := methodref.Ref{Owner: "Shape$", Name: "lambda$describe$0", Desc: "(LShape;)V"}
		resolver.Record(methodref.Ref{Owner: "Shape", Name: "lambda$describe$0", Desc: "()V"}, renamed)
		ctx := NewContext(resolver)
		chain := NewDefaultChain(Java7)
		assert.Equal(t, []string{"update-renamed-enclosing-methods", "remove-default-method-bodies", "lower-version"}, chain.Names())

		data, err := chain.Transform(ctx, "Shape$1", nested("Shape", "lambda$describe$0", "()V").Build(t))
		require.NoError(t, err)
		out, err := classfile.ParseBytes(data)
		require.NoError(t, err)
		assert.Equal(t, uint16(Java7), out.MajorVersion)
		em, err := out.EnclosingMethod()
		require.NoError(t, err)
		assert.Equal(t, "Shape$", em.Owner)
		assert.Equal(t, "(LShape;)V", em.Descriptor)
	})

	t.Run("stops at first error", func(t *testing.T) {
		chain := NewChain(failingPass{}, RemoveDefaultMethodBodies{})
		_, err := chain.Run(NewContext(nil), parse(t, shape()))
		var passErr *PassError
		require.ErrorAs(t, err, &passErr)
		assert.Equal(t, "Shape", passErr.Unit)
		assert.Equal(t, "failing", passErr.Pass)
		assert.EqualError(t, err, "Shape: failing: boom")
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := NewDefaultChain(Java7).Transform(NewContext(nil), "Broken", []byte{0xca, 0xfe})
		var passErr *PassError
		require.ErrorAs(t, err, &passErr)
		assert.Equal(t, "Broken", passErr.Unit)
		assert.Equal(t, "parse", passErr.Pass)
	})
}
