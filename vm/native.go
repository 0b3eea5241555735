package vm

import (
	"context"
	"fmt"

	"github.com/cretz/msplit/bytecode"
)

// Native is a Go implementation of a method. Instance methods receive the
// receiver as args[0]. Arguments and results use the stack representation
// described on Object; void natives return nil.
type Native func(ctx context.Context, args []any) (any, error)

// Throw returns an error that, when returned by a Native, raises a Java
// exception of the given class in the calling routine.
func Throw(class, message string) error {
	return newThrowable(class, message)
}

func methodKey(owner, name, desc string) string {
	return owner + "." + name + desc
}

func builtinNatives() map[string]Native {
	natives := map[string]Native{
		methodKey("java/lang/Object", "<init>", "()V"): func(context.Context, []any) (any, error) {
			return nil, nil
		},
		methodKey("java/lang/Object", "hashCode", "()I"): func(context.Context, []any) (any, error) {
			return int32(0), nil
		},
		methodKey("java/lang/String", "length", "()I"): func(_ context.Context, args []any) (any, error) {
			return int32(len(args[0].(string))), nil
		},
		methodKey("java/lang/String", "valueOf", "(I)Ljava/lang/String;"): func(_ context.Context, args []any) (any, error) {
			return fmt.Sprint(args[0]), nil
		},
	}
	for _, t := range []bytecode.Type{
		bytecode.BooleanType, bytecode.CharType, bytecode.ByteType, bytecode.ShortType,
		bytecode.IntType, bytecode.FloatType, bytecode.LongType, bytecode.DoubleType,
	} {
		b, _ := bytecode.BoxingOf(t)
		class := b.Class
		natives[methodKey(class, "valueOf", b.BoxDesc)] = func(_ context.Context, args []any) (any, error) {
			return &Boxed{Class: class, Value: args[0]}, nil
		}
		natives[methodKey(class, b.UnboxName, b.UnboxDesc)] = func(_ context.Context, args []any) (any, error) {
			boxed, ok := args[0].(*Boxed)
			if !ok || boxed.Class != class {
				return nil, Throw("java/lang/ClassCastException", classOf(args[0]))
			}
			return boxed.Value, nil
		}
	}
	natives[methodKey("java/lang/Throwable", "<init>", "()V")] = func(context.Context, []any) (any, error) {
		return nil, nil
	}
	natives[methodKey("java/lang/Throwable", "<init>", "(Ljava/lang/String;)V")] = func(_ context.Context, args []any) (any, error) {
		args[0].(*Object).Fields["message"] = args[1]
		return nil, nil
	}
	natives[methodKey("java/lang/Throwable", "getMessage", "()Ljava/lang/String;")] = func(_ context.Context, args []any) (any, error) {
		return args[0].(*Object).Fields["message"], nil
	}
	return natives
}
